/*
Package rewards implements the VivaBucks loyalty engine.

PURPOSE:
  This package contains the business rules for the rewards program:
  how purchase points accumulate, how cumulative points unlock membership
  tiers with earning multipliers, how redeemable points convert to cash
  rewards at fixed thresholds, and how redemptions are reversed against
  the per-account ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: Per-user rewards state (balances, tier, milestone)
  - LedgerEntry: An immutable record of a balance-affecting event
  - RewardStatus: Derived Locked/Eligible/Redeemed state, computed on read
  - AccountID/EntryID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for cash and multipliers, int64 for
     points. Point adjustments always round down.
  2. Auditability: Every balance change appends a ledger entry with a
     stable UUID, so a redemption can be reversed by identifier.
  3. Derived state: Tier and milestone are recomputed from balances on
     every mutation; reward status is computed on read, never stored.

USAGE:
  engine, _ := rewards.NewEngine(store, rewards.DefaultConfig())
  result, err := engine.EarnPoints(ctx, "acct-1", rewards.EarnInput{
      RawPoints: 250,
      Source:    "purchase",
  })

SEE ALSO:
  - tiers.go: Tier table and reward arithmetic
  - engine.go: Earning, redemption, and restoration operations
  - store.go: Persistence interface
*/
package rewards

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type EntryID string

// =============================================================================
// ACCOUNT - Per-user rewards state
// =============================================================================

// Account holds the rewards state for one user. It is mutated only by the
// Engine, under a per-account lock, and persisted as one unit together with
// any ledger entries the mutation produced.
type Account struct {
	ID    AccountID
	Name  string
	Email string

	// RedeemablePoints is the spendable balance. Decreases on redemption,
	// increases on earning and restoration. Never negative.
	RedeemablePoints int64

	// CumulativePoints drives tier membership. Monotonically non-decreasing
	// over the account's lifetime; redemption never touches it. Only an
	// explicit reset zeroes it.
	CumulativePoints int64

	// CashBalance is redeemed reward currency available at checkout.
	CashBalance decimal.Decimal

	// CurrentTier and PointsMultiplier are cached from the tier table and
	// recomputed whenever CumulativePoints changes.
	CurrentTier      string
	PointsMultiplier decimal.Decimal

	// NextRewardMilestone is the display target for the progress bar: the
	// smallest reward-threshold multiple at or above RedeemablePoints,
	// capped at the configured maximum. It does not cap earning.
	NextRewardMilestone int64

	// Version supports compare-and-swap at the storage layer.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount returns a zero-balance account in the floor tier of cfg.
func NewAccount(id AccountID, name, email string, cfg Config) *Account {
	floor := cfg.TierFor(0)
	now := time.Now().UTC()
	return &Account{
		ID:                  id,
		Name:                name,
		Email:               email,
		CashBalance:         decimal.Zero,
		CurrentTier:         floor.Name,
		PointsMultiplier:    floor.Multiplier,
		NextRewardMilestone: cfg.NextMilestone(0),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// =============================================================================
// LEDGER ENTRY - Immutable audit record
// =============================================================================

type EntryType string

const (
	EntryPointsEarned   EntryType = "POINTS_EARNED"
	EntryRewardRedeemed EntryType = "REWARD_REDEEMED"
	EntryRewardRestored EntryType = "REWARD_RESTORED"
	EntryTierChanged    EntryType = "TIER_CHANGED"
)

// LedgerEntry records one balance-affecting event. Entries are append-only;
// the single exception is restoration, which removes the REWARD_REDEEMED
// entry it reverses (and appends a REWARD_RESTORED entry in its place).
type LedgerEntry struct {
	ID        EntryID
	AccountID AccountID
	Type      EntryType
	At        time.Time

	// Source is a free-text origin tag ("purchase", "redemption", "test").
	Source string

	// Tier at the time of the event.
	Tier string

	// Earning fields (EntryPointsEarned). RawPoints may be fractional;
	// AdjustedPoints is the floored multiplied total actually credited.
	RawPoints      decimal.Decimal
	AdjustedPoints int64
	Multiplier     decimal.Decimal

	// Redemption/restoration fields (EntryRewardRedeemed, EntryRewardRestored).
	Amount     decimal.Decimal
	PointsUsed int64

	// Tier change fields (EntryTierChanged).
	OldTier string
	NewTier string
}

// =============================================================================
// REWARD STATUS - Derived state, computed on read
// =============================================================================

// RewardStatus is the state-machine view of an account, derived from the
// arithmetic relation between balances. It is never stored.
type RewardStatus string

const (
	// StatusLocked: below the first reward threshold, nothing redeemed.
	StatusLocked RewardStatus = "LOCKED"
	// StatusEligible: at least one full reward is redeemable.
	StatusEligible RewardStatus = "ELIGIBLE"
	// StatusRedeemed: cash balance is waiting to be applied at checkout.
	StatusRedeemed RewardStatus = "REDEEMED"
)

// StatusOf derives the reward status for an account.
// An outstanding cash balance wins over eligibility: the UI should prompt
// the user to apply what they already redeemed before redeeming more.
func StatusOf(a *Account, cfg Config) RewardStatus {
	if a.CashBalance.IsPositive() {
		return StatusRedeemed
	}
	if cfg.RewardAmountFor(a.RedeemablePoints).IsPositive() {
		return StatusEligible
	}
	return StatusLocked
}
