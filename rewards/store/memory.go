// Package store provides an in-memory rewards.Store implementation
// for testing and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/vivarx/rewards-engine/rewards"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	accounts map[rewards.AccountID]*rewards.Account
	entries  map[rewards.AccountID][]rewards.LedgerEntry
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[rewards.AccountID]*rewards.Account),
		entries:  make(map[rewards.AccountID][]rewards.LedgerEntry),
	}
}

var _ rewards.Store = (*Memory)(nil)

func (m *Memory) CreateAccount(_ context.Context, account *rewards.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.ID]; ok {
		return rewards.ErrAccountExists
	}
	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

func (m *Memory) LoadAccount(_ context.Context, id rewards.AccountID) (*rewards.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, rewards.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]*rewards.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*rewards.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		cp := *account
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) SaveAccount(_ context.Context, account *rewards.Account, appends []rewards.LedgerEntry, remove rewards.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.accounts[account.ID]
	if !ok {
		return rewards.ErrAccountNotFound
	}
	if stored.Version != account.Version {
		return rewards.ErrConcurrentModification
	}

	entries := m.entries[account.ID]
	if remove != "" {
		idx := -1
		for i, e := range entries {
			if e.ID == remove {
				idx = i
				break
			}
		}
		if idx < 0 {
			return rewards.ErrNoMatchingRedemption
		}
		entries = append(entries[:idx], entries[idx+1:]...)
	}
	entries = append(entries, appends...)

	account.Version++
	cp := *account
	m.accounts[account.ID] = &cp
	m.entries[account.ID] = entries
	return nil
}

func (m *Memory) History(_ context.Context, id rewards.AccountID, limit int) ([]rewards.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.entries[id]

	// Most recent first. Entries are stored append-ordered, so walk backwards.
	result := make([]rewards.LedgerEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		result = append(result, entries[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *Memory) ResetAccount(_ context.Context, account *rewards.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.accounts[account.ID]
	if !ok {
		return rewards.ErrAccountNotFound
	}
	if stored.Version != account.Version {
		return rewards.ErrConcurrentModification
	}

	account.Version++
	cp := *account
	m.accounts[account.ID] = &cp
	m.entries[account.ID] = nil
	return nil
}
