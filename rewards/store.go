/*
store.go - Persistence interface for accounts and ledger entries

PURPOSE:
  Defines the interface between the engine and the database. The account
  record and its ledger entries form one consistency unit: every mutation
  (balance update plus entry appends, and for restoration one entry
  removal) must commit atomically or not at all.

ATOMICITY CONTRACT:
  SaveAccount persists the account state and its ledger delta in a single
  storage transaction. A caller can never observe a balance change without
  its entries, or vice versa.

CONCURRENCY CONTRACT:
  SaveAccount performs a compare-and-swap on Account.Version. A stale
  version returns ErrConcurrentModification. The engine additionally
  serializes same-account operations with a keyed lock (locks.go), so the
  version check is the cross-process backstop.

LEDGER SEMANTICS:
  Entries are append-only with one exception: restoration removes the
  REWARD_REDEEMED entry it reverses. ResetAccount clears everything; it
  exists for admin/test flows only.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - rewards/store: in-memory store for tests

SEE ALSO:
  - engine.go: The only caller of the write methods
  - store/sqlite/sqlite.go: Concrete implementation
*/
package rewards

import "context"

// =============================================================================
// STORE - Interface for account + ledger persistence
// =============================================================================

// Store handles persistence of accounts and their ledger entries.
type Store interface {
	// CreateAccount inserts a new account. Returns ErrAccountExists if the
	// id is taken.
	CreateAccount(ctx context.Context, account *Account) error

	// LoadAccount returns the account or ErrAccountNotFound.
	LoadAccount(ctx context.Context, id AccountID) (*Account, error)

	// ListAccounts returns all accounts, ordered by creation time.
	ListAccounts(ctx context.Context) ([]*Account, error)

	// SaveAccount atomically persists the account state, appends the given
	// entries, and removes the entry identified by remove (if non-empty).
	// The write succeeds only if the stored version matches
	// account.Version; on success the version is incremented both in
	// storage and on the passed account. A stale version returns
	// ErrConcurrentModification.
	SaveAccount(ctx context.Context, account *Account, appends []LedgerEntry, remove EntryID) error

	// History returns ledger entries for an account, most recent first.
	// limit <= 0 returns everything.
	History(ctx context.Context, id AccountID, limit int) ([]LedgerEntry, error)

	// ResetAccount zeroes all reward fields and clears the ledger in one
	// atomic operation. Admin/test only.
	ResetAccount(ctx context.Context, account *Account) error
}
