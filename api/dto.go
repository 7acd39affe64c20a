/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Cash amounts cross the wire as JSON numbers. Requests are parsed into
  decimals immediately; responses are rendered from decimals at the last
  moment. No arithmetic ever happens on float64.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/vivarx/rewards-engine/rewards"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// StatusDTO is the balance snapshot returned by status and by every
// mutating operation.
type StatusDTO struct {
	AccountID           string  `json:"account_id"`
	RedeemablePoints    int64   `json:"redeemable_points"`
	CumulativePoints    int64   `json:"cumulative_points"`
	CashBalance         float64 `json:"cash_balance"`
	CurrentTier         string  `json:"current_tier"`
	PointsMultiplier    float64 `json:"points_multiplier"`
	NextRewardMilestone int64   `json:"next_reward_milestone"`
	AvailableReward     float64 `json:"available_reward"`
	PointsToNextReward  int64   `json:"points_to_next_reward"`
	Status              string  `json:"status"`
}

// EarnRequest is the request to award points. Points may be fractional:
// a $10.50 purchase at the base rate is 10.5 raw points.
type EarnRequest struct {
	Points float64 `json:"points"`
	Source string  `json:"source"`
	Test   bool    `json:"test,omitempty"`
}

// EarnResponseDTO reports an earning operation.
type EarnResponseDTO struct {
	StatusDTO
	RawPoints      float64 `json:"raw_points"`
	AdjustedPoints int64   `json:"adjusted_points"`
	Multiplier     float64 `json:"multiplier"`
	TierChanged    bool    `json:"tier_changed"`
	PreviousTier   string  `json:"previous_tier,omitempty"`
}

// RedeemRequest is the request to convert points to cash.
type RedeemRequest struct {
	Amount float64 `json:"amount"`
}

// RedeemResponseDTO reports a redemption.
type RedeemResponseDTO struct {
	StatusDTO
	RedeemedAmount float64 `json:"redeemed_amount"`
	PointsUsed     int64   `json:"points_used"`
	EntryID        string  `json:"entry_id"`
}

// RestoreRequest is the request to reverse a redemption. EntryID pins the
// exact redemption when the caller kept it; otherwise the most recent
// redemption with an equal amount is matched.
type RestoreRequest struct {
	Amount  float64 `json:"amount"`
	EntryID string  `json:"entry_id,omitempty"`
}

// RestoreResponseDTO reports a restoration.
type RestoreResponseDTO struct {
	StatusDTO
	RestoredAmount float64 `json:"restored_amount"`
	PointsRestored int64   `json:"points_restored"`
	RestoredEntry  string  `json:"restored_entry"`
}

// LedgerEntryDTO represents one history entry.
type LedgerEntryDTO struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	At             string  `json:"at"`
	Source         string  `json:"source,omitempty"`
	Tier           string  `json:"tier,omitempty"`
	RawPoints      float64 `json:"raw_points,omitempty"`
	AdjustedPoints int64   `json:"adjusted_points,omitempty"`
	Multiplier     float64 `json:"multiplier,omitempty"`
	Amount         float64 `json:"amount,omitempty"`
	PointsUsed     int64   `json:"points_used,omitempty"`
	OldTier        string  `json:"old_tier,omitempty"`
	NewTier        string  `json:"new_tier,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toStatusDTO(s *rewards.Summary) StatusDTO {
	return StatusDTO{
		AccountID:           string(s.AccountID),
		RedeemablePoints:    s.RedeemablePoints,
		CumulativePoints:    s.CumulativePoints,
		CashBalance:         s.CashBalance.InexactFloat64(),
		CurrentTier:         s.CurrentTier,
		PointsMultiplier:    s.PointsMultiplier.InexactFloat64(),
		NextRewardMilestone: s.NextRewardMilestone,
		AvailableReward:     s.AvailableReward.InexactFloat64(),
		PointsToNextReward:  s.PointsToNextReward,
		Status:              string(s.Status),
	}
}

func toAccountDTO(a *rewards.Account) AccountDTO {
	return AccountDTO{
		ID:        string(a.ID),
		Name:      a.Name,
		Email:     a.Email,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e rewards.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:             string(e.ID),
		Type:           string(e.Type),
		At:             e.At.Format(time.RFC3339Nano),
		Source:         e.Source,
		Tier:           e.Tier,
		RawPoints:      e.RawPoints.InexactFloat64(),
		AdjustedPoints: e.AdjustedPoints,
		Multiplier:     e.Multiplier.InexactFloat64(),
		Amount:         e.Amount.InexactFloat64(),
		PointsUsed:     e.PointsUsed,
		OldTier:        e.OldTier,
		NewTier:        e.NewTier,
	}
}
