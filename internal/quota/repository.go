package quota

import (
	"context"
	"sort"
	"sync"

	"github.com/fluentup-app/fluentup/internal/identity"
)

// Repository persists usage records keyed by sanitized user id.
//
// Load never fails with "not found": a missing record is created zeroed on
// first read. Delete is idempotent.
type Repository interface {
	Load(ctx context.Context, userID string) (*Record, error)
	Save(ctx context.Context, rec *Record) (*Record, error)
	Delete(ctx context.Context, userID string) error
	ListAll(ctx context.Context) ([]*Record, error)
}

// memoryRepository is the volatile backend: a mutex-guarded map keyed by
// sanitized id. Contents are lost on process restart.
type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryRepository returns an empty in-process repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[string]*Record)}
}

func (r *memoryRepository) Load(_ context.Context, userID string) (*Record, error) {
	safeID := identity.Sanitize(userID)

	r.mu.RLock()
	rec, ok := r.records[safeID]
	r.mu.RUnlock()
	if ok {
		return rec.Clone().Normalize(), nil
	}

	rec = NewRecord(userID, safeID)
	r.mu.Lock()
	// Re-check under the write lock; another goroutine may have seeded it.
	if existing, ok := r.records[safeID]; ok {
		rec = existing
	} else {
		r.records[safeID] = rec
	}
	r.mu.Unlock()
	return rec.Clone().Normalize(), nil
}

func (r *memoryRepository) Save(_ context.Context, rec *Record) (*Record, error) {
	cp := rec.Clone().Normalize()
	cp.SafeID = identity.Sanitize(rec.ID)
	if rec.SafeID != "" {
		cp.SafeID = rec.SafeID
	}

	r.mu.Lock()
	r.records[cp.SafeID] = cp
	r.mu.Unlock()
	return cp.Clone(), nil
}

func (r *memoryRepository) Delete(_ context.Context, userID string) error {
	safeID := identity.Sanitize(userID)
	r.mu.Lock()
	delete(r.records, safeID)
	r.mu.Unlock()
	return nil
}

func (r *memoryRepository) ListAll(_ context.Context) ([]*Record, error) {
	r.mu.RLock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone().Normalize())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SafeID < out[j].SafeID })
	return out, nil
}
