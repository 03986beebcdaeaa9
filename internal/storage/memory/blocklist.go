package memory

import (
	"context"
	"sync"

	"github.com/m-orlov/tgsentinel/internal/storage"
)

// Blocklist is an in-memory set of excluded user ids.
type Blocklist struct {
	mu      sync.RWMutex
	blocked map[int64]struct{}
}

var _ storage.Blocklist = (*Blocklist)(nil)

// NewBlocklist returns an empty in-memory blocklist.
func NewBlocklist() *Blocklist {
	return &Blocklist{blocked: make(map[int64]struct{})}
}

// IsBlocked reports set membership for the user id.
func (b *Blocklist) IsBlocked(_ context.Context, userID int64) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.blocked[userID]
	return ok, nil
}

// Block adds the user id to the set. Idempotent.
func (b *Blocklist) Block(_ context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.blocked[userID] = struct{}{}
	return nil
}

// Unblock removes the user id from the set. Idempotent.
func (b *Blocklist) Unblock(_ context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.blocked, userID)
	return nil
}

// Blocked returns a snapshot copy of the set.
func (b *Blocklist) Blocked(_ context.Context) (map[int64]struct{}, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot := make(map[int64]struct{}, len(b.blocked))
	for id := range b.blocked {
		snapshot[id] = struct{}{}
	}

	return snapshot, nil
}
