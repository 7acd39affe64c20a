/*
Package events fans out ledger-changed notifications to UI observers.

PURPOSE:
  The rewards engine itself only returns results; this package is the
  pub/sub layer that tells connected clients a balance changed. Handlers
  publish after a successful persist, never before, so observers only
  see committed state.

NOTIFIERS:
  Manager:       In-process dispatch to registered handlers. Default.
  RedisNotifier: Publishes JSON to a Redis channel for multi-process
                 deployments (see redis.go).
  Multi:         Fans out to several notifiers.

EVENT TYPES:
  points.updated, reward.redeemed, reward.restored, points.reset

SEE ALSO:
  - redis.go: Redis-backed notifier
  - api/handlers.go: The publisher
*/
package events

import (
	"context"
	"sync"
	"time"
)

// Type identifies what changed on the ledger.
type Type string

const (
	// PointsUpdated is emitted after earning (including tier changes).
	PointsUpdated Type = "points.updated"
	// RewardRedeemed is emitted after points convert to cash.
	RewardRedeemed Type = "reward.redeemed"
	// RewardRestored is emitted after a redemption is reversed.
	RewardRestored Type = "reward.restored"
	// PointsReset is emitted after an admin/test reset.
	PointsReset Type = "points.reset"
)

// Event describes one committed ledger change.
type Event struct {
	Type      Type      `json:"type"`
	AccountID string    `json:"account_id"`
	At        time.Time `json:"at"`
	Payload   any       `json:"payload,omitempty"`
}

// Notifier delivers events to observers. Publish is called only after the
// change has been persisted; failures are the observer's problem, not the
// ledger's, so callers log and move on.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event)

// =============================================================================
// MANAGER - In-process notifier
// =============================================================================

// Manager dispatches events to registered handlers in-process.
type Manager struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// NewManager creates an empty manager. A manager with no subscribers is a
// valid no-op notifier.
func NewManager() *Manager {
	return &Manager{handlers: make(map[Type][]Handler)}
}

var _ Notifier = (*Manager)(nil)

// Subscribe registers a handler for an event type.
func (m *Manager) Subscribe(t Type, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[t] = append(m.handlers[t], h)
}

// Publish dispatches the event to every handler registered for its type.
func (m *Manager) Publish(ctx context.Context, event Event) error {
	m.mu.RLock()
	handlers := append([]Handler(nil), m.handlers[event.Type]...)
	m.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}

// =============================================================================
// MULTI - Fan-out to several notifiers
// =============================================================================

// Multi publishes to each notifier in order, returning the first error.
type Multi []Notifier

var _ Notifier = Multi(nil)

func (m Multi) Publish(ctx context.Context, event Event) error {
	for _, n := range m {
		if err := n.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
