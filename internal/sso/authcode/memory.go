// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

package authcode

import (
	"context"
	"sync"
	"time"

	"github.com/talentgrid/identity/internal/platform/constants"
	"github.com/talentgrid/identity/internal/platform/sec"
)

// entry is one stored code with its used flag.
type entry struct {
	record Record
	used   bool
}

// MemoryStore is a single-process Store. Valid only for single-instance
// deployments; a code issued here is invisible to every other instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry

	// now supports deterministic expiry tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory code store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// CreateCode implements [Store].
func (store *MemoryStore) CreateCode(_ context.Context, input CreateInput) (string, error) {
	code, err := sec.GenerateSecureToken(constants.SecureTokenLength)
	if err != nil {
		return "", err
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	store.entries[code] = &entry{record: Record{
		UserID:              input.UserID,
		ClientID:            input.ClientID,
		RedirectURI:         input.RedirectURI,
		State:               input.State,
		CodeChallenge:       input.CodeChallenge,
		CodeChallengeMethod: input.CodeChallengeMethod,
		ExpiresAt:           store.now().Add(constants.AuthorizationCodeTTL),
	}}
	return code, nil
}

// ConsumeCode implements [Store]. The used entry lingers for a short grace
// window so a near-simultaneous duplicate reads "already used" instead of
// "not found".
func (store *MemoryStore) ConsumeCode(_ context.Context, code string) (*Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	found, ok := store.entries[code]
	if !ok {
		return nil, ErrNotFound
	}
	if found.used {
		return nil, ErrAlreadyUsed
	}
	if store.now().After(found.record.ExpiresAt) {
		delete(store.entries, code)
		return nil, ErrExpired
	}

	found.used = true
	time.AfterFunc(constants.AuthorizationCodeGrace, func() {
		store.mu.Lock()
		defer store.mu.Unlock()
		delete(store.entries, code)
	})

	record := found.record
	return &record, nil
}

// Sweep deletes everything past expiry regardless of use state. Exposed so
// tests can drive it; production runs it via [MemoryStore.StartSweeper].
func (store *MemoryStore) Sweep() int {
	store.mu.Lock()
	defer store.mu.Unlock()

	now := store.now()
	removed := 0
	for code, found := range store.entries {
		if now.After(found.record.ExpiresAt) {
			delete(store.entries, code)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on a fixed interval until the context is canceled.
func (store *MemoryStore) StartSweeper(context context.Context) {
	ticker := time.NewTicker(constants.AuthorizationCodeSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-context.Done():
			return
		case <-ticker.C:
			store.Sweep()
		}
	}
}
