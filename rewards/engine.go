/*
engine.go - Earning, redemption, and restoration operations

PURPOSE:
  The Engine is the only component allowed to mutate an account's rewards
  state. Each operation is a single read-modify-write sequence: load the
  account, validate every precondition before touching anything, apply the
  arithmetic, then persist the new state and its ledger entries as one
  atomic unit.

OPERATIONS:
  EarnPoints: multiply raw points by the current tier multiplier (rounding
              down), grow both balances, log the earning and any tier
              crossing, refresh the milestone.
  Redeem:     convert unlocked points to cash at the fixed threshold rate.
              Cumulative points are untouched - tier survives redemption.
  Restore:    reverse a specific prior redemption, returning its points
              and removing its cash and its ledger entry.
  Status:     read-only snapshot with derived reward status.
  History:    ledger entries, most recent first.
  Reset:      zero everything and clear the ledger. Admin/test only.

FAIL-FAST:
  All business-rule violations are detected before any mutation, so no
  rollback is ever needed. Only storage failures can occur afterwards,
  and the Store contract guarantees they leave no partial state behind.

CONCURRENCY:
  Every mutating operation holds the account's keyed mutex for its whole
  read-modify-write span. See locks.go and the Store version check.

SEE ALSO:
  - tiers.go: The arithmetic these operations apply
  - errors.go: The precondition failures they return
*/
package rewards

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies the rewards program rules against a Store.
type Engine struct {
	store Store
	cfg   Config
	locks *accountLocks

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine validates cfg and returns an engine backed by store.
func NewEngine(store Store, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		store: store,
		cfg:   cfg,
		locks: newAccountLocks(),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Config returns the program configuration the engine runs with.
func (e *Engine) Config() Config { return e.cfg }

// =============================================================================
// RESULTS
// =============================================================================

// Summary is the balance snapshot every operation returns.
type Summary struct {
	AccountID           AccountID
	RedeemablePoints    int64
	CumulativePoints    int64
	CashBalance         decimal.Decimal
	CurrentTier         string
	PointsMultiplier    decimal.Decimal
	NextRewardMilestone int64
	AvailableReward     decimal.Decimal
	PointsToNextReward  int64
	Status              RewardStatus
}

func (e *Engine) summarize(a *Account) Summary {
	return Summary{
		AccountID:           a.ID,
		RedeemablePoints:    a.RedeemablePoints,
		CumulativePoints:    a.CumulativePoints,
		CashBalance:         a.CashBalance,
		CurrentTier:         a.CurrentTier,
		PointsMultiplier:    a.PointsMultiplier,
		NextRewardMilestone: a.NextRewardMilestone,
		AvailableReward:     e.cfg.RewardAmountFor(a.RedeemablePoints),
		PointsToNextReward:  e.cfg.PointsToNextReward(a.RedeemablePoints),
		Status:              StatusOf(a, e.cfg),
	}
}

// EarnInput describes a point award.
type EarnInput struct {
	// RawPoints is the unmultiplied award, typically purchase dollars at
	// the $1 = 1 point base rate. Fractional values are valid (a $10.50
	// purchase earns 10.5 raw points); only the multiplied total is floored.
	RawPoints decimal.Decimal

	// Source is a provenance tag recorded on the ledger entry.
	Source string

	// Test skips ledger entries entirely, keeping manual test awards out
	// of the audit trail.
	Test bool
}

// EarnResult reports an earning operation.
type EarnResult struct {
	Summary
	RawPoints      decimal.Decimal
	AdjustedPoints int64
	Multiplier     decimal.Decimal
	TierChanged    bool
	PreviousTier   string
}

// RedeemResult reports a redemption.
type RedeemResult struct {
	Summary
	RedeemedAmount decimal.Decimal
	PointsUsed     int64
	EntryID        EntryID
}

// RestoreResult reports a restoration.
type RestoreResult struct {
	Summary
	RestoredAmount decimal.Decimal
	PointsRestored int64
	RestoredEntry  EntryID
}

// =============================================================================
// EARNING
// =============================================================================

// EarnPoints awards points for a purchase or action, applying the current
// tier multiplier with floor rounding.
func (e *Engine) EarnPoints(ctx context.Context, id AccountID, in EarnInput) (*EarnResult, error) {
	if in.RawPoints.IsNegative() {
		return nil, ErrInvalidInput
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	account, err := e.store.LoadAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	tier := e.cfg.TierFor(account.CumulativePoints)
	adjusted := in.RawPoints.Mul(tier.Multiplier).Floor().IntPart()

	account.RedeemablePoints += adjusted
	account.CumulativePoints += adjusted

	now := e.now()
	var appends []LedgerEntry
	if !in.Test {
		appends = append(appends, LedgerEntry{
			ID:             EntryID(uuid.NewString()),
			AccountID:      id,
			Type:           EntryPointsEarned,
			At:             now,
			Source:         in.Source,
			Tier:           tier.Name,
			RawPoints:      in.RawPoints,
			AdjustedPoints: adjusted,
			Multiplier:     tier.Multiplier,
		})
	}

	previousTier := account.CurrentTier
	newTier := e.cfg.TierFor(account.CumulativePoints)
	tierChanged := newTier.Name != previousTier
	if tierChanged && !in.Test {
		appends = append(appends, LedgerEntry{
			ID:        EntryID(uuid.NewString()),
			AccountID: id,
			Type:      EntryTierChanged,
			At:        now,
			Source:    in.Source,
			OldTier:   previousTier,
			NewTier:   newTier.Name,
		})
	}
	account.CurrentTier = newTier.Name
	account.PointsMultiplier = newTier.Multiplier
	account.NextRewardMilestone = e.cfg.NextMilestone(account.RedeemablePoints)
	account.UpdatedAt = now

	if err := e.store.SaveAccount(ctx, account, appends, ""); err != nil {
		return nil, err
	}

	return &EarnResult{
		Summary:        e.summarize(account),
		RawPoints:      in.RawPoints,
		AdjustedPoints: adjusted,
		Multiplier:     tier.Multiplier,
		TierChanged:    tierChanged,
		PreviousTier:   previousTier,
	}, nil
}

// =============================================================================
// REDEMPTION
// =============================================================================

// Redeem converts unlocked points to cash. The requested amount must be
// positive, within the unlocked value, and back a whole number of points
// at the program's exchange rate.
func (e *Engine) Redeem(ctx context.Context, id AccountID, amount decimal.Decimal) (*RedeemResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidInput
	}
	pointsToDeduct, ok := e.cfg.PointsFor(amount)
	if !ok {
		return nil, ErrInvalidInput
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	account, err := e.store.LoadAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	available := e.cfg.RewardAmountFor(account.RedeemablePoints)
	if !available.IsPositive() {
		return nil, ErrNoRewardAvailable
	}
	if amount.GreaterThan(available) {
		return nil, &AmountExceedsAvailableError{
			AccountID: id,
			Requested: amount,
			Available: available,
		}
	}

	account.RedeemablePoints -= pointsToDeduct
	account.CashBalance = account.CashBalance.Add(amount)
	account.NextRewardMilestone = e.cfg.NextMilestone(account.RedeemablePoints)
	now := e.now()
	account.UpdatedAt = now

	entry := LedgerEntry{
		ID:         EntryID(uuid.NewString()),
		AccountID:  id,
		Type:       EntryRewardRedeemed,
		At:         now,
		Source:     "redemption",
		Tier:       account.CurrentTier,
		Amount:     amount,
		PointsUsed: pointsToDeduct,
	}

	if err := e.store.SaveAccount(ctx, account, []LedgerEntry{entry}, ""); err != nil {
		return nil, err
	}

	return &RedeemResult{
		Summary:        e.summarize(account),
		RedeemedAmount: amount,
		PointsUsed:     pointsToDeduct,
		EntryID:        entry.ID,
	}, nil
}

// =============================================================================
// RESTORATION
// =============================================================================

// Restore reverses a prior redemption, returning its points and removing
// its cash. The redemption is identified by entryID when the caller has
// one; otherwise the most recent REWARD_REDEEMED entry with an equal
// amount is matched.
func (e *Engine) Restore(ctx context.Context, id AccountID, amount decimal.Decimal, entryID EntryID) (*RestoreResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidInput
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	account, err := e.store.LoadAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if account.CashBalance.LessThan(amount) {
		return nil, &InsufficientBalanceError{
			AccountID: id,
			Requested: amount,
			Balance:   account.CashBalance,
		}
	}

	matched, err := e.findRedemption(ctx, id, amount, entryID)
	if err != nil {
		return nil, err
	}

	account.RedeemablePoints += matched.PointsUsed
	account.CashBalance = account.CashBalance.Sub(amount)
	account.NextRewardMilestone = e.cfg.NextMilestone(account.RedeemablePoints)
	now := e.now()
	account.UpdatedAt = now

	restored := LedgerEntry{
		ID:         EntryID(uuid.NewString()),
		AccountID:  id,
		Type:       EntryRewardRestored,
		At:         now,
		Source:     "restoration",
		Tier:       account.CurrentTier,
		Amount:     amount,
		PointsUsed: matched.PointsUsed,
	}

	if err := e.store.SaveAccount(ctx, account, []LedgerEntry{restored}, matched.ID); err != nil {
		return nil, err
	}

	return &RestoreResult{
		Summary:        e.summarize(account),
		RestoredAmount: amount,
		PointsRestored: matched.PointsUsed,
		RestoredEntry:  matched.ID,
	}, nil
}

// findRedemption locates the REWARD_REDEEMED entry a restoration reverses.
func (e *Engine) findRedemption(ctx context.Context, id AccountID, amount decimal.Decimal, entryID EntryID) (*LedgerEntry, error) {
	entries, err := e.store.History(ctx, id, 0)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		entry := &entries[i]
		if entry.Type != EntryRewardRedeemed {
			continue
		}
		if entryID != "" {
			if entry.ID == entryID && entry.Amount.Equal(amount) {
				return entry, nil
			}
			continue
		}
		// History is most recent first, so the first amount match is the
		// latest redemption.
		if entry.Amount.Equal(amount) {
			return entry, nil
		}
	}
	return nil, ErrNoMatchingRedemption
}

// =============================================================================
// READS
// =============================================================================

// Status returns the current balance snapshot for an account.
func (e *Engine) Status(ctx context.Context, id AccountID) (*Summary, error) {
	account, err := e.store.LoadAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	s := e.summarize(account)
	return &s, nil
}

// History returns ledger entries, most recent first.
func (e *Engine) History(ctx context.Context, id AccountID, limit int) ([]LedgerEntry, error) {
	if _, err := e.store.LoadAccount(ctx, id); err != nil {
		return nil, err
	}
	return e.store.History(ctx, id, limit)
}

// =============================================================================
// RESET
// =============================================================================

// Reset zeroes all reward fields and clears the ledger. Admin/test only.
func (e *Engine) Reset(ctx context.Context, id AccountID) (*Summary, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	account, err := e.store.LoadAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	floor := e.cfg.TierFor(0)
	account.RedeemablePoints = 0
	account.CumulativePoints = 0
	account.CashBalance = decimal.Zero
	account.CurrentTier = floor.Name
	account.PointsMultiplier = floor.Multiplier
	account.NextRewardMilestone = e.cfg.NextMilestone(0)
	account.UpdatedAt = e.now()

	if err := e.store.ResetAccount(ctx, account); err != nil {
		return nil, err
	}

	s := e.summarize(account)
	return &s, nil
}
