/*
errors.go - Centralized error types for the rewards engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every business-rule violation is detected before any mutation, so
  callers never observe half-applied balance changes; only storage
  failures can occur after computation.

ERROR CATEGORIES:
  1. Input errors - malformed or out-of-range arguments
  2. Precondition errors - redemption/restoration rules unmet
  3. Storage errors - persistence failures, version conflicts

USAGE:
  Handlers map errors to HTTP status via the classification helpers:

    if rewards.IsClientError(err) { ... 400/409 ... }
    if rewards.IsNotFound(err)    { ... 404 ... }

SEE ALSO:
  - engine.go: Where preconditions are enforced
  - api/handlers.go: HTTP status mapping
*/
package rewards

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed arguments (negative points,
	// non-positive amounts, amounts not aligned to the reward unit).
	// Rejected before any mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoRewardAvailable is returned when redeeming below the first
	// reward threshold.
	ErrNoRewardAvailable = errors.New("no reward available")

	// ErrAmountExceedsAvailable is returned when the requested redemption
	// exceeds the unlocked reward value.
	ErrAmountExceedsAvailable = errors.New("amount exceeds available reward")

	// ErrInsufficientBalance is returned when restoring more cash than the
	// account holds.
	ErrInsufficientBalance = errors.New("insufficient cash balance")

	// ErrNoMatchingRedemption is returned when no REWARD_REDEEMED entry
	// matches the restoration request.
	ErrNoMatchingRedemption = errors.New("no matching redemption")

	// ErrAccountNotFound is returned when no account backs the supplied id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when creating an account with a taken id.
	ErrAccountExists = errors.New("account already exists")

	// ErrConcurrentModification is returned when the storage-layer version
	// check detects a conflicting write.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrStorage wraps persistence-layer failures.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AmountExceedsAvailableError reports how far a redemption overshot.
type AmountExceedsAvailableError struct {
	AccountID AccountID
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *AmountExceedsAvailableError) Error() string {
	return fmt.Sprintf("requested %s exceeds available reward %s for account %s",
		e.Requested, e.Available, e.AccountID)
}

func (e *AmountExceedsAvailableError) Unwrap() error {
	return ErrAmountExceedsAvailable
}

// InsufficientBalanceError reports a restoration shortfall.
type InsufficientBalanceError struct {
	AccountID AccountID
	Requested decimal.Decimal
	Balance   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("cash balance %s below requested restoration %s for account %s",
		e.Balance, e.Requested, e.AccountID)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// StorageError wraps a lower-level persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return ErrStorage
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a business-rule rejection the
// caller can act on (corrected input, fewer points requested, and so on).
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNoRewardAvailable) ||
		errors.Is(err, ErrAmountExceedsAvailable) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNoMatchingRedemption) ||
		errors.Is(err, ErrAccountExists)
}

// IsNotFound returns true if the error indicates a missing account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
