package quota

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fluentup-app/fluentup/internal/metrics"
)

// Mode names the active backend, surfaced in API responses as the
// "storage" field.
type Mode string

const (
	ModeDurable Mode = "durable"
	ModeMemory  Mode = "memory"
)

// Store routes repository calls to the durable backend and degrades to the
// volatile backend when S3 denies access. The transition is one-way and
// lasts for the process lifetime: permission problems do not fix themselves
// between requests, and retrying S3 on every call would only add latency.
type Store struct {
	durable Repository
	memory  Repository

	mu       sync.RWMutex
	fellBack bool
}

// NewStore wraps the given durable repository. A nil durable repository
// puts the store in memory mode from the start.
func NewStore(durable Repository) *Store {
	s := &Store{
		durable: durable,
		memory:  NewMemoryRepository(),
	}
	if durable == nil {
		s.fellBack = true
	}
	metrics.StorageMode.Set(s.modeGaugeValue())
	return s
}

// Mode reports the active backend.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fellBack {
		return ModeMemory
	}
	return ModeDurable
}

func (s *Store) modeGaugeValue() float64 {
	if s.fellBack {
		return 1
	}
	return 0
}

func (s *Store) active() Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fellBack {
		return s.memory
	}
	return s.durable
}

// failover flips the store to the volatile backend. Logged once; concurrent
// callers may race to the flip but the transition is idempotent.
func (s *Store) failover(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fellBack {
		return
	}
	s.fellBack = true
	metrics.StorageMode.Set(1)
	slog.Warn("durable storage access denied, switching to in-memory store for the rest of the process lifetime",
		"error", err)
}

func (s *Store) Load(ctx context.Context, userID string) (*Record, error) {
	rec, err := s.active().Load(ctx, userID)
	if err != nil {
		if isAccessDenied(err) {
			s.failover(err)
			return s.memory.Load(ctx, userID)
		}
		return nil, &StorageError{Op: "load", Err: err}
	}
	return rec, nil
}

func (s *Store) Save(ctx context.Context, rec *Record) (*Record, error) {
	saved, err := s.active().Save(ctx, rec)
	if err != nil {
		if isAccessDenied(err) {
			s.failover(err)
			return s.memory.Save(ctx, rec)
		}
		return nil, &StorageError{Op: "save", Err: err}
	}
	return saved, nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.active().Delete(ctx, userID); err != nil {
		if isAccessDenied(err) {
			s.failover(err)
			return s.memory.Delete(ctx, userID)
		}
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]*Record, error) {
	records, err := s.active().ListAll(ctx)
	if err != nil {
		if isAccessDenied(err) {
			s.failover(err)
			return s.memory.ListAll(ctx)
		}
		return nil, &StorageError{Op: "list", Err: err}
	}
	return records, nil
}
