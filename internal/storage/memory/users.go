package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-orlov/tgsentinel/internal/storage"
)

// UserRepo is an in-memory identity record store.
type UserRepo struct {
	mu    sync.RWMutex
	users map[int64]*storage.UserRecord
}

var _ storage.UserRepo = (*UserRepo)(nil)

// NewUserRepo returns an empty in-memory user repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[int64]*storage.UserRecord)}
}

// IsRegistered reports whether a record exists for the user id.
func (r *UserRepo) IsRegistered(_ context.Context, userID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[userID]
	return ok, nil
}

// Register creates a record for the user id. Registration is create-only:
// an already registered id is left untouched.
func (r *UserRepo) Register(_ context.Context, userID int64, attrs map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; ok {
		return nil
	}

	r.users[userID] = &storage.UserRecord{
		UserID:     userID,
		Attributes: copyAttrs(attrs),
		CreatedAt:  time.Now().UTC(),
	}

	return nil
}

// Get returns a copy of the record, or nil when the id is unknown.
func (r *UserRepo) Get(_ context.Context, userID int64) (*storage.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.users[userID]
	if !ok {
		return nil, nil
	}

	return &storage.UserRecord{
		UserID:     rec.UserID,
		Attributes: copyAttrs(rec.Attributes),
		CreatedAt:  rec.CreatedAt,
	}, nil
}

// Update merges attributes into an existing record. Updating an unknown id
// is a no-op.
func (r *UserRepo) Update(_ context.Context, userID int64, attrs map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[userID]
	if !ok {
		return nil
	}

	for k, v := range attrs {
		rec.Attributes[k] = v
	}

	return nil
}

func copyAttrs(attrs map[string]string) map[string]string {
	dst := make(map[string]string, len(attrs))
	for k, v := range attrs {
		dst[k] = v
	}

	return dst
}
