/*
Package sqlite provides a SQLite-backed implementation of rewards.Store.

PURPOSE:
  Persists accounts and their ledger entries. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  accounts:       One row per user, with balances, cached tier, and a
                  version column for optimistic locking
  ledger_entries: Ledger of balance-affecting events

ATOMICITY:
  SaveAccount runs the account UPDATE, any entry DELETE (restoration),
  and all entry INSERTs inside one SQL transaction. A reader can never
  observe a balance change without its ledger entries.

OPTIMISTIC LOCKING:
  The account UPDATE carries "AND version = ?". Zero rows affected means
  another writer got there first and the caller sees
  rewards.ErrConcurrentModification. Single-process deployments rarely
  hit this because the engine also serializes per account, but the
  version check is what protects multi-process deployments.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/rewards.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - rewards/store.go: Interface definition and contracts
  - rewards/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/vivarx/rewards-engine/rewards"
)

// Store implements rewards.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ rewards.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection also
	// keeps ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (one row per user, versioned for optimistic locking)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		redeemable_points INTEGER NOT NULL DEFAULT 0,
		cumulative_points INTEGER NOT NULL DEFAULT 0,
		cash_balance TEXT NOT NULL DEFAULT '0',
		current_tier TEXT NOT NULL,
		points_multiplier TEXT NOT NULL,
		next_reward_milestone INTEGER NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Ledger entries (append-only, except restoration removal)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		entry_type TEXT NOT NULL,
		at TEXT NOT NULL,
		source TEXT,
		tier TEXT,
		raw_points TEXT NOT NULL DEFAULT '0',
		adjusted_points INTEGER NOT NULL DEFAULT 0,
		multiplier TEXT,
		amount TEXT,
		points_used INTEGER NOT NULL DEFAULT 0,
		old_tier TEXT,
		new_tier TEXT,
		seq INTEGER
	);

	-- History queries (hot path): account, newest first
	CREATE INDEX IF NOT EXISTS idx_entries_account_at
		ON ledger_entries(account_id, at DESC, seq DESC);

	-- Restoration matching: redemptions by account
	CREATE INDEX IF NOT EXISTS idx_entries_account_type
		ON ledger_entries(account_id, entry_type);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccount inserts a new account row.
func (s *Store) CreateAccount(ctx context.Context, account *rewards.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO accounts
		(id, name, email, redeemable_points, cumulative_points, cash_balance,
		 current_tier, points_multiplier, next_reward_milestone, version,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Email,
		account.RedeemablePoints,
		account.CumulativePoints,
		account.CashBalance.String(),
		account.CurrentTier,
		account.PointsMultiplier.String(),
		account.NextRewardMilestone,
		account.Version,
		account.CreatedAt.Format(time.RFC3339Nano),
		account.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return rewards.ErrAccountExists
		}
		return &rewards.StorageError{Op: "create account", Err: err}
	}
	return nil
}

// LoadAccount returns the account or rewards.ErrAccountNotFound.
func (s *Store) LoadAccount(ctx context.Context, id rewards.AccountID) (*rewards.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, redeemable_points, cumulative_points, cash_balance,
		       current_tier, points_multiplier, next_reward_milestone, version,
		       created_at, updated_at
		FROM accounts WHERE id = ?
	`, id)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, rewards.ErrAccountNotFound
	}
	if err != nil {
		return nil, &rewards.StorageError{Op: "load account", Err: err}
	}
	return account, nil
}

// ListAccounts returns all accounts, oldest first.
func (s *Store) ListAccounts(ctx context.Context) ([]*rewards.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, redeemable_points, cumulative_points, cash_balance,
		       current_tier, points_multiplier, next_reward_milestone, version,
		       created_at, updated_at
		FROM accounts ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, &rewards.StorageError{Op: "list accounts", Err: err}
	}
	defer rows.Close()

	var accounts []*rewards.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, &rewards.StorageError{Op: "list accounts", Err: err}
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*rewards.Account, error) {
	var (
		account    rewards.Account
		email      sql.NullString
		cash       string
		multiplier string
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(
		&account.ID, &account.Name, &email,
		&account.RedeemablePoints, &account.CumulativePoints, &cash,
		&account.CurrentTier, &multiplier, &account.NextRewardMilestone,
		&account.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Email = email.String
	if account.CashBalance, err = parseDecimal(cash); err != nil {
		return nil, fmt.Errorf("cash balance for account %s: %w", account.ID, err)
	}
	if account.PointsMultiplier, err = parseDecimal(multiplier); err != nil {
		return nil, fmt.Errorf("points multiplier for account %s: %w", account.ID, err)
	}
	account.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	account.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &account, nil
}

// parseDecimal rejects unparseable stored values rather than zeroing them;
// a corrupted balance must surface as an error, never as $0.
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("corrupt stored decimal %q: %w", s, err)
	}
	return d, nil
}

// =============================================================================
// SAVE - Atomic balance update + ledger delta
// =============================================================================

// SaveAccount persists the account and its ledger delta in one SQL
// transaction, guarded by the version compare-and-swap.
func (s *Store) SaveAccount(ctx context.Context, account *rewards.Account, appends []rewards.LedgerEntry, remove rewards.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &rewards.StorageError{Op: "begin save", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET
			name = ?, email = ?,
			redeemable_points = ?, cumulative_points = ?, cash_balance = ?,
			current_tier = ?, points_multiplier = ?, next_reward_milestone = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		account.Name, account.Email,
		account.RedeemablePoints, account.CumulativePoints, account.CashBalance.String(),
		account.CurrentTier, account.PointsMultiplier.String(), account.NextRewardMilestone,
		account.UpdatedAt.Format(time.RFC3339Nano),
		account.ID, account.Version,
	)
	if err != nil {
		return &rewards.StorageError{Op: "update account", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &rewards.StorageError{Op: "update account", Err: err}
	}
	if affected == 0 {
		// Either the row is gone or another writer bumped the version.
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM accounts WHERE id = ?", account.ID,
		).Scan(&exists); err != nil {
			return &rewards.StorageError{Op: "update account", Err: err}
		}
		if exists == 0 {
			return rewards.ErrAccountNotFound
		}
		return rewards.ErrConcurrentModification
	}

	if remove != "" {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM ledger_entries WHERE id = ? AND account_id = ?",
			remove, account.ID,
		)
		if err != nil {
			return &rewards.StorageError{Op: "remove entry", Err: err}
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return rewards.ErrNoMatchingRedemption
		}
	}

	for _, entry := range appends {
		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return &rewards.StorageError{Op: "commit save", Err: err}
	}
	account.Version++
	return nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, entry rewards.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(id, account_id, entry_type, at, source, tier, raw_points,
		 adjusted_points, multiplier, amount, points_used, old_tier, new_tier,
		 seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		        (SELECT COALESCE(MAX(seq), 0) + 1 FROM ledger_entries WHERE account_id = ?))
	`,
		entry.ID, entry.AccountID, entry.Type,
		entry.At.Format(time.RFC3339Nano),
		entry.Source, entry.Tier,
		entry.RawPoints.String(), entry.AdjustedPoints,
		entry.Multiplier.String(),
		entry.Amount.String(),
		entry.PointsUsed, entry.OldTier, entry.NewTier,
		entry.AccountID,
	)
	if err != nil {
		return &rewards.StorageError{Op: "append entry", Err: err}
	}
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

// History returns ledger entries, most recent first.
func (s *Store) History(ctx context.Context, id rewards.AccountID, limit int) ([]rewards.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, account_id, entry_type, at, source, tier, raw_points,
		       adjusted_points, multiplier, amount, points_used, old_tier, new_tier
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY at DESC, seq DESC
	`
	args := []any{id}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &rewards.StorageError{Op: "query history", Err: err}
	}
	defer rows.Close()

	var entries []rewards.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, &rewards.StorageError{Op: "scan history", Err: err}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (rewards.LedgerEntry, error) {
	var (
		entry      rewards.LedgerEntry
		at         string
		source     sql.NullString
		tier       sql.NullString
		rawPoints  string
		multiplier sql.NullString
		amount     sql.NullString
		oldTier    sql.NullString
		newTier    sql.NullString
	)

	err := rows.Scan(
		&entry.ID, &entry.AccountID, &entry.Type, &at,
		&source, &tier, &rawPoints, &entry.AdjustedPoints,
		&multiplier, &amount, &entry.PointsUsed, &oldTier, &newTier,
	)
	if err != nil {
		return entry, err
	}

	entry.At, _ = time.Parse(time.RFC3339Nano, at)
	entry.Source = source.String
	entry.Tier = tier.String
	if entry.RawPoints, err = parseDecimal(rawPoints); err != nil {
		return entry, fmt.Errorf("raw points for entry %s: %w", entry.ID, err)
	}
	if multiplier.Valid {
		if entry.Multiplier, err = parseDecimal(multiplier.String); err != nil {
			return entry, fmt.Errorf("multiplier for entry %s: %w", entry.ID, err)
		}
	}
	if amount.Valid {
		if entry.Amount, err = parseDecimal(amount.String); err != nil {
			return entry, fmt.Errorf("amount for entry %s: %w", entry.ID, err)
		}
	}
	entry.OldTier = oldTier.String
	entry.NewTier = newTier.String
	return entry, nil
}

// =============================================================================
// RESET
// =============================================================================

// ResetAccount zeroes the account and clears its ledger atomically.
func (s *Store) ResetAccount(ctx context.Context, account *rewards.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &rewards.StorageError{Op: "begin reset", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET
			redeemable_points = 0, cumulative_points = 0, cash_balance = '0',
			current_tier = ?, points_multiplier = ?, next_reward_milestone = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		account.CurrentTier, account.PointsMultiplier.String(),
		account.NextRewardMilestone,
		account.UpdatedAt.Format(time.RFC3339Nano),
		account.ID, account.Version,
	)
	if err != nil {
		return &rewards.StorageError{Op: "reset account", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &rewards.StorageError{Op: "reset account", Err: err}
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM accounts WHERE id = ?", account.ID,
		).Scan(&exists); err != nil {
			return &rewards.StorageError{Op: "reset account", Err: err}
		}
		if exists == 0 {
			return rewards.ErrAccountNotFound
		}
		return rewards.ErrConcurrentModification
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM ledger_entries WHERE account_id = ?", account.ID,
	); err != nil {
		return &rewards.StorageError{Op: "clear ledger", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &rewards.StorageError{Op: "commit reset", Err: err}
	}
	account.Version++
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
