package quota

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/fluentup-app/fluentup/internal/config"
	"github.com/fluentup-app/fluentup/internal/identity"
	"github.com/fluentup-app/fluentup/internal/metrics"
	"github.com/fluentup-app/fluentup/internal/nats"
)

// EventPublisher emits usage lifecycle events. *nats.Publisher satisfies
// it; a nil publisher disables event emission.
type EventPublisher interface {
	PublishUsageEvent(ctx context.Context, event nats.UsageEvent) error
}

// Service implements the quota accounting operations on top of the
// failover Store. Limits are computed once at construction and never
// change.
type Service struct {
	store     *Store
	cfg       config.QuotaConfig
	limits    Limits
	publisher EventPublisher
}

// NewService creates a quota Service. publisher may be nil.
func NewService(store *Store, cfg config.QuotaConfig, publisher EventPublisher) *Service {
	return &Service{
		store:     store,
		cfg:       cfg,
		limits:    ComputeLimits(cfg),
		publisher: publisher,
	}
}

// Limits returns the overall per-category caps.
func (s *Service) Limits() Limits {
	return s.limits
}

// PerSectionLimits returns the raw configured per-section caps.
func (s *Service) PerSectionLimits() map[Category]int {
	return map[Category]int{
		CategoryListening:     s.cfg.ListeningPerSection,
		CategoryTranslation:   s.cfg.TranslationPerSection,
		CategoryPronunciation: s.cfg.PronunciationPerSection,
	}
}

// SectionCount returns the configured number of lesson sections.
func (s *Service) SectionCount() int {
	return s.cfg.SectionCount
}

// StorageMode reports which backend is serving requests.
func (s *Service) StorageMode() Mode {
	return s.store.Mode()
}

// Remaining computes the per-category headroom for a record.
func (s *Service) Remaining(rec *Record) Remaining {
	return ComputeRemaining(rec, s.limits)
}

// GetUsage returns the user's record, creating a zeroed one on first
// access.
func (s *Service) GetUsage(ctx context.Context, userID string) (*Record, error) {
	if !identity.Valid(userID) {
		return nil, ErrInvalidIdentity
	}
	return s.store.Load(ctx, userID)
}

// NormalizeAmount converts a request-supplied amount to the increment step:
// positive finite numbers are floored, everything else defaults to 1.
// Amounts above MaxInt32 are capped there; converting a larger float
// straight to int would overflow to a negative step and let an increment
// shrink a counter.
func NormalizeAmount(amount float64) int {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 1 {
		return 1
	}
	if amount > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(amount))
}

// IncrementUsage adds amount to the category's counter after checking the
// overall cap. On an over-cap increment it returns ErrQuotaExceeded-typed
// *ExceededError and leaves the record untouched and unpersisted.
func (s *Service) IncrementUsage(ctx context.Context, userID, category string, amount float64) (*Record, error) {
	if !identity.Valid(userID) {
		return nil, ErrInvalidIdentity
	}
	cat, err := ParseCategory(category)
	if err != nil {
		return nil, err
	}
	step := NormalizeAmount(amount)

	rec, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	used := rec.Used(cat)
	limit := s.limits.For(cat)
	if !limit.IsUnlimited() && int64(used)+int64(step) > int64(limit) {
		metrics.QuotaExceededTotal.WithLabelValues(string(cat)).Inc()
		return rec, &ExceededError{Category: cat, Limit: limit, Used: used}
	}

	rec.SetUsed(cat, used+step)
	rec.UpdatedAt = time.Now().UTC()

	saved, err := s.store.Save(ctx, rec)
	if err != nil {
		return nil, err
	}

	metrics.UsageIncrementsTotal.WithLabelValues(string(cat)).Inc()
	s.publish(ctx, nats.UsageEvent{
		Action:    nats.ActionIncrement,
		SafeID:    saved.SafeID,
		Category:  string(cat),
		Amount:    step,
		Used:      saved.Used(cat),
		Timestamp: saved.UpdatedAt,
	})
	return saved, nil
}

// ResetUsage zeroes all three counters and stamps resetAt and updatedAt.
func (s *Service) ResetUsage(ctx context.Context, userID string) (*Record, error) {
	if !identity.Valid(userID) {
		return nil, ErrInvalidIdentity
	}

	rec, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec.ListeningUsed = 0
	rec.TranslationUsed = 0
	rec.PronunciationUsed = 0
	rec.ResetAt = &now
	rec.UpdatedAt = now

	saved, err := s.store.Save(ctx, rec)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, nats.UsageEvent{
		Action:    nats.ActionReset,
		SafeID:    saved.SafeID,
		Admin:     true,
		Timestamp: now,
	})
	return saved, nil
}

// DeleteUsage removes the persisted record. Deleting a missing record is
// not an error; the next access recreates a fresh zeroed record.
func (s *Service) DeleteUsage(ctx context.Context, userID string) error {
	if !identity.Valid(userID) {
		return ErrInvalidIdentity
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		return err
	}
	s.publish(ctx, nats.UsageEvent{
		Action:    nats.ActionDelete,
		SafeID:    identity.Sanitize(userID),
		Admin:     true,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// ListUsage returns every known record.
func (s *Service) ListUsage(ctx context.Context) ([]*Record, error) {
	return s.store.ListAll(ctx)
}

func (s *Service) publish(ctx context.Context, event nats.UsageEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishUsageEvent(ctx, event); err != nil {
		slog.Warn("publishing usage event", "action", event.Action, "error", err)
	}
}
