package quota

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentup-app/fluentup/internal/config"
	"github.com/fluentup-app/fluentup/internal/nats"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []nats.UsageEvent
}

func (p *capturingPublisher) PublishUsageEvent(_ context.Context, event nats.UsageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func testQuotaConfig() config.QuotaConfig {
	return config.QuotaConfig{
		ListeningPerSection:     10,
		TranslationPerSection:   10,
		PronunciationPerSection: 10,
		SectionCount:            17,
	}
}

func newTestService(pub EventPublisher) *Service {
	return NewService(NewStore(nil), testQuotaConfig(), pub)
}

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		want   int
	}{
		{"one", 1, 1},
		{"fractional floors", 2.9, 2},
		{"large", 170, 170},
		{"max int32 passes", math.MaxInt32, math.MaxInt32},
		{"overflowing float caps", 1e19, math.MaxInt32},
		{"max float caps", math.MaxFloat64, math.MaxInt32},
		{"zero defaults", 0, 1},
		{"sub-one defaults", 0.4, 1},
		{"negative defaults", -5, 1},
		{"nan defaults", math.NaN(), 1},
		{"positive inf defaults", math.Inf(1), 1},
		{"negative inf defaults", math.Inf(-1), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeAmount(tc.amount))
		})
	}
}

func TestService_GetUsageCreatesZeroedRecord(t *testing.T) {
	svc := newTestService(nil)

	rec, err := svc.GetUsage(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.SafeID)
	assert.Equal(t, 0, rec.Used(CategoryListening))
	assert.Equal(t, 0, rec.Used(CategoryTranslation))
	assert.Equal(t, 0, rec.Used(CategoryPronunciation))
}

func TestService_GetUsageRejectsBlankIdentity(t *testing.T) {
	svc := newTestService(nil)

	_, err := svc.GetUsage(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestService_IncrementUsage(t *testing.T) {
	pub := &capturingPublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	rec, err := svc.IncrementUsage(ctx, "alice", "listening", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Used(CategoryListening))
	assert.Equal(t, 0, rec.Used(CategoryTranslation))

	rec, err = svc.IncrementUsage(ctx, "alice", "listening", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Used(CategoryListening))

	// The increment survives a fresh load.
	rec, err = svc.GetUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Used(CategoryListening))

	require.Len(t, pub.events, 2)
	assert.Equal(t, nats.ActionIncrement, pub.events[0].Action)
	assert.Equal(t, "listening", pub.events[0].Category)
	assert.Equal(t, 3, pub.events[0].Amount)
	assert.Equal(t, 5, pub.events[1].Used)
}

func TestService_IncrementUsageRejectsUnknownCategory(t *testing.T) {
	svc := newTestService(nil)

	_, err := svc.IncrementUsage(context.Background(), "alice", "grammar", 1)
	assert.ErrorIs(t, err, ErrUnsupportedCategory)
}

func TestService_IncrementUsageExactlyAtCapSucceeds(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	// Overall cap is 10 per section x 17 sections = 170.
	rec, err := svc.IncrementUsage(ctx, "alice", "listening", 170)
	require.NoError(t, err)
	assert.Equal(t, 170, rec.Used(CategoryListening))
}

func TestService_IncrementUsageOverCapLeavesRecordUntouched(t *testing.T) {
	pub := &capturingPublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	_, err := svc.IncrementUsage(ctx, "alice", "translation", 169)
	require.NoError(t, err)
	pub.events = nil

	rec, err := svc.IncrementUsage(ctx, "alice", "translation", 2)
	require.Error(t, err)

	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, CategoryTranslation, exceeded.Category)
	assert.Equal(t, Limit(170), exceeded.Limit)
	assert.Equal(t, 169, exceeded.Used)

	// The rejected increment still returns the current snapshot.
	require.NotNil(t, rec)
	assert.Equal(t, 169, rec.Used(CategoryTranslation))

	// Nothing was persisted and no event was emitted.
	again, err := svc.GetUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 169, again.Used(CategoryTranslation))
	assert.Empty(t, pub.events)
}

func TestService_HugeAmountCannotShrinkCounter(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.IncrementUsage(ctx, "alice", "listening", 100)
	require.NoError(t, err)

	// An amount that overflows int when converted must not turn into a
	// negative step that slips past the cap check and zeroes the counter.
	rec, err := svc.IncrementUsage(ctx, "alice", "listening", 1e19)
	require.Error(t, err)

	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 100, exceeded.Used)
	assert.Equal(t, 100, rec.Used(CategoryListening))

	again, err := svc.GetUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 100, again.Used(CategoryListening))
}

func TestService_HugeAmountOnUnlimitedCategoryStaysPositive(t *testing.T) {
	cfg := testQuotaConfig()
	cfg.ListeningPerSection = 0
	svc := NewService(NewStore(nil), cfg, nil)
	ctx := context.Background()

	_, err := svc.IncrementUsage(ctx, "alice", "listening", 100)
	require.NoError(t, err)

	rec, err := svc.IncrementUsage(ctx, "alice", "listening", 1e19)
	require.NoError(t, err)
	assert.Equal(t, 100+math.MaxInt32, rec.Used(CategoryListening))
}

func TestService_UnlimitedCategoryNeverExceeds(t *testing.T) {
	cfg := testQuotaConfig()
	cfg.PronunciationPerSection = 0
	svc := NewService(NewStore(nil), cfg, nil)
	ctx := context.Background()

	rec, err := svc.IncrementUsage(ctx, "alice", "pronunciation", 1e6)
	require.NoError(t, err)
	assert.Equal(t, 1_000_000, rec.Used(CategoryPronunciation))

	rec, err = svc.IncrementUsage(ctx, "alice", "pronunciation", 1e6)
	require.NoError(t, err)
	assert.Equal(t, 2_000_000, rec.Used(CategoryPronunciation))
}

func TestService_CategoriesAreIndependent(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.IncrementUsage(ctx, "alice", "listening", 170)
	require.NoError(t, err)

	// Exhausting listening must not block translation.
	rec, err := svc.IncrementUsage(ctx, "alice", "translation", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Used(CategoryTranslation))
}

func TestService_ResetUsage(t *testing.T) {
	pub := &capturingPublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	_, err := svc.IncrementUsage(ctx, "alice", "listening", 12)
	require.NoError(t, err)
	_, err = svc.IncrementUsage(ctx, "alice", "translation", 4)
	require.NoError(t, err)

	rec, err := svc.ResetUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Used(CategoryListening))
	assert.Equal(t, 0, rec.Used(CategoryTranslation))
	assert.Equal(t, 0, rec.Used(CategoryPronunciation))
	require.NotNil(t, rec.ResetAt)
	assert.Equal(t, *rec.ResetAt, rec.UpdatedAt)

	last := pub.events[len(pub.events)-1]
	assert.Equal(t, nats.ActionReset, last.Action)
	assert.True(t, last.Admin)
}

func TestService_DeleteUsage(t *testing.T) {
	pub := &capturingPublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	_, err := svc.IncrementUsage(ctx, "alice", "listening", 50)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUsage(ctx, "alice"))
	// Idempotent.
	require.NoError(t, svc.DeleteUsage(ctx, "alice"))

	// The next access starts from a fresh zeroed record.
	rec, err := svc.GetUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Used(CategoryListening))
	assert.Nil(t, rec.ResetAt)

	last := pub.events[len(pub.events)-1]
	assert.Equal(t, nats.ActionDelete, last.Action)
	assert.Equal(t, "alice", last.SafeID)
}

func TestService_ListUsage(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.IncrementUsage(ctx, "bob", "listening", 1)
	require.NoError(t, err)
	_, err = svc.GetUsage(ctx, "alice")
	require.NoError(t, err)

	records, err := svc.ListUsage(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alice", records[0].SafeID)
	assert.Equal(t, "bob", records[1].SafeID)
}

func TestService_SameSanitizedIdentitySharesRecord(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	_, err := svc.IncrementUsage(ctx, "josé@example.com", "listening", 2)
	require.NoError(t, err)

	rec, err := svc.GetUsage(ctx, "  josé@example.com  ")
	require.NoError(t, err)
	assert.Equal(t, "jos__example.com", rec.SafeID)
	assert.Equal(t, 2, rec.Used(CategoryListening))
}

func TestService_RemainingAfterIncrements(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	rec, err := svc.IncrementUsage(ctx, "alice", "listening", 30)
	require.NoError(t, err)

	remaining := svc.Remaining(rec)
	assert.Equal(t, Limit(140), remaining.Listening)
	assert.Equal(t, Limit(170), remaining.Translation)
}
