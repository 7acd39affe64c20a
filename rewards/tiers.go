/*
tiers.go - Tier table and reward arithmetic

PURPOSE:
  Static configuration for the rewards program: the ordered tier table
  (cumulative points -> named tier with earning multiplier) and the pure
  arithmetic converting redeemable points to cash rewards.

CANONICAL TABLE:
  STANDARD      0 points   x1.0
  SILVER     1000 points   x1.1
  GOLD       2500 points   x1.2
  PLATINUM   5000 points   x1.3

  100 points unlock a $10 reward; the progress milestone is capped at
  1000 points for display purposes only.

DESIGN:
  All lookups are pure functions on an explicit Config value - no package
  globals. Tests run with alternate tables by constructing their own Config.
  A Config can also be parsed from JSON for deployments that tune the table.

EDGE CASE:
  PointsToNextReward reports the distance to the NEXT reward above the
  current balance. At an exact threshold multiple it returns a full
  threshold, not zero.

SEE ALSO:
  - types.go: Account state these lookups feed
  - engine.go: The only caller that mutates state
*/
package rewards

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIER DEFINITION
// =============================================================================

// TierDefinition maps a cumulative-points floor to a named tier and its
// earning multiplier. Membership is the highest tier whose floor does not
// exceed the account's cumulative points.
type TierDefinition struct {
	Name                string
	MinCumulativePoints int64
	Multiplier          decimal.Decimal
}

// =============================================================================
// CONFIG - Program constants, passed explicitly
// =============================================================================

// Config holds the fixed constants of the rewards program.
type Config struct {
	// PointsPerReward is the redeemable-point cost of one reward unit.
	PointsPerReward int64

	// RewardAmount is the cash value of one reward unit.
	RewardAmount decimal.Decimal

	// MaxMilestone caps NextMilestone. Display only; balances are not clamped.
	MaxMilestone int64

	// Tiers ordered by MinCumulativePoints ascending. The first tier must
	// have a floor of zero so every cumulative value maps to a tier.
	Tiers []TierDefinition
}

// DefaultConfig returns the canonical production configuration.
func DefaultConfig() Config {
	return Config{
		PointsPerReward: 100,
		RewardAmount:    decimal.NewFromInt(10),
		MaxMilestone:    1000,
		Tiers: []TierDefinition{
			{Name: "STANDARD", MinCumulativePoints: 0, Multiplier: decimal.NewFromInt(1)},
			{Name: "SILVER", MinCumulativePoints: 1000, Multiplier: decimal.RequireFromString("1.1")},
			{Name: "GOLD", MinCumulativePoints: 2500, Multiplier: decimal.RequireFromString("1.2")},
			{Name: "PLATINUM", MinCumulativePoints: 5000, Multiplier: decimal.RequireFromString("1.3")},
		},
	}
}

// Validate checks the structural invariants of a config.
func (c Config) Validate() error {
	if c.PointsPerReward <= 0 {
		return fmt.Errorf("points per reward must be positive, got %d", c.PointsPerReward)
	}
	if !c.RewardAmount.IsPositive() {
		return fmt.Errorf("reward amount must be positive, got %s", c.RewardAmount)
	}
	if c.MaxMilestone < c.PointsPerReward {
		return fmt.Errorf("max milestone %d below reward threshold %d", c.MaxMilestone, c.PointsPerReward)
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("at least one tier is required")
	}
	if c.Tiers[0].MinCumulativePoints != 0 {
		return fmt.Errorf("first tier %q must start at 0 points", c.Tiers[0].Name)
	}
	one := decimal.NewFromInt(1)
	for i, tier := range c.Tiers {
		if tier.Name == "" {
			return fmt.Errorf("tier %d has no name", i)
		}
		if tier.Multiplier.LessThan(one) {
			return fmt.Errorf("tier %q multiplier %s below 1.0", tier.Name, tier.Multiplier)
		}
		if i > 0 && tier.MinCumulativePoints <= c.Tiers[i-1].MinCumulativePoints {
			return fmt.Errorf("tiers not strictly ascending at %q", tier.Name)
		}
	}
	return nil
}

// =============================================================================
// TIER LOOKUP
// =============================================================================

// TierFor returns the highest tier whose floor does not exceed cumulative.
// Total: the zero-floor tier guarantees a match for any non-negative value.
func (c Config) TierFor(cumulative int64) TierDefinition {
	idx := sort.Search(len(c.Tiers), func(i int) bool {
		return c.Tiers[i].MinCumulativePoints > cumulative
	})
	if idx == 0 {
		return c.Tiers[0]
	}
	return c.Tiers[idx-1]
}

// NextTier returns the tier above the one holding cumulative points, or
// false if the account is already in the top tier.
func (c Config) NextTier(cumulative int64) (TierDefinition, bool) {
	idx := sort.Search(len(c.Tiers), func(i int) bool {
		return c.Tiers[i].MinCumulativePoints > cumulative
	})
	if idx >= len(c.Tiers) {
		return TierDefinition{}, false
	}
	return c.Tiers[idx], true
}

// =============================================================================
// REWARD ARITHMETIC
// =============================================================================

// RewardAmountFor returns the cash value currently unlocked by redeemable
// points: floor(points / threshold) * reward amount. Zero below the first
// threshold.
func (c Config) RewardAmountFor(redeemable int64) decimal.Decimal {
	if redeemable < c.PointsPerReward {
		return decimal.Zero
	}
	units := redeemable / c.PointsPerReward
	return c.RewardAmount.Mul(decimal.NewFromInt(units))
}

// PointsToNextReward returns the distance to the next reward above the
// current balance. At an exact multiple of the threshold this is a full
// threshold, not zero: the current reward is already unlocked and the
// progress bar tracks the one after it.
func (c Config) PointsToNextReward(redeemable int64) int64 {
	return c.PointsPerReward - (redeemable % c.PointsPerReward)
}

// PointsFor returns the redeemable points backing a cash amount:
// (amount / reward amount) * threshold. Partial reward units are fine
// ($15 against a $10 unit backs 150 points); the second return is false
// only when the amount does not map to a whole number of points.
func (c Config) PointsFor(amount decimal.Decimal) (int64, bool) {
	points := amount.Mul(decimal.NewFromInt(c.PointsPerReward)).Div(c.RewardAmount)
	if !points.IsInteger() {
		return 0, false
	}
	return points.IntPart(), true
}

// NextMilestone returns the progress-bar target: the smallest threshold
// multiple at or above redeemable, at least one threshold, capped at
// MaxMilestone. Balances themselves are never clamped.
func (c Config) NextMilestone(redeemable int64) int64 {
	m := (redeemable + c.PointsPerReward - 1) / c.PointsPerReward * c.PointsPerReward
	if m < c.PointsPerReward {
		m = c.PointsPerReward
	}
	if m > c.MaxMilestone {
		m = c.MaxMilestone
	}
	return m
}

// =============================================================================
// JSON CONFIG - Alternate tables without a rebuild
// =============================================================================

// ConfigJSON is the serialized form of Config.
type ConfigJSON struct {
	PointsPerReward int64      `json:"points_per_reward"`
	RewardAmount    string     `json:"reward_amount"`
	MaxMilestone    int64      `json:"max_milestone"`
	Tiers           []TierJSON `json:"tiers"`
}

type TierJSON struct {
	Name       string `json:"name"`
	MinPoints  int64  `json:"min_points"`
	Multiplier string `json:"multiplier"`
}

// ParseConfig builds and validates a Config from JSON.
func ParseConfig(data []byte) (Config, error) {
	var raw ConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("invalid rewards config: %w", err)
	}

	amount, err := decimal.NewFromString(raw.RewardAmount)
	if err != nil {
		return Config{}, fmt.Errorf("invalid reward amount %q: %w", raw.RewardAmount, err)
	}

	cfg := Config{
		PointsPerReward: raw.PointsPerReward,
		RewardAmount:    amount,
		MaxMilestone:    raw.MaxMilestone,
	}
	for _, t := range raw.Tiers {
		mult, err := decimal.NewFromString(t.Multiplier)
		if err != nil {
			return Config{}, fmt.Errorf("invalid multiplier %q for tier %q: %w", t.Multiplier, t.Name, err)
		}
		cfg.Tiers = append(cfg.Tiers, TierDefinition{
			Name:                t.Name,
			MinCumulativePoints: t.MinPoints,
			Multiplier:          mult,
		})
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
