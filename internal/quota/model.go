// Package quota tracks per-user usage counters for the three AI-assisted
// exercise categories and enforces the configured caps. Records live in a
// durable S3 backend with an automatic one-way fallback to an in-process
// store when S3 access is denied.
package quota

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/fluentup-app/fluentup/internal/config"
)

// Category is one of the tracked exercise categories.
type Category string

const (
	CategoryListening     Category = "listening"
	CategoryTranslation   Category = "translation"
	CategoryPronunciation Category = "pronunciation"
)

// Categories lists all tracked categories in display order.
var Categories = []Category{CategoryListening, CategoryTranslation, CategoryPronunciation}

// ParseCategory validates a raw category string.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryListening, CategoryTranslation, CategoryPronunciation:
		return Category(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCategory, s)
}

// Count is a non-negative usage counter. It decodes tolerantly: fractional
// values are floored, negative and non-numeric values become zero, so a
// hand-edited or corrupted stored record can never surface as a negative or
// fractional count.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*c = 0
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		*c = 0
		return nil
	}
	*c = Count(math.Floor(f))
	return nil
}

// Record is one user's usage counters. SafeID is the canonical storage key
// derived from ID by identity.Sanitize and never changes once assigned.
type Record struct {
	ID                string     `json:"id"`
	SafeID            string     `json:"safeId"`
	ListeningUsed     Count      `json:"listeningUsed"`
	TranslationUsed   Count      `json:"translationUsed"`
	PronunciationUsed Count      `json:"pronunciationUsed"`
	ResetAt           *time.Time `json:"resetAt,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// NewRecord returns a zeroed record for the given raw and sanitized ids.
func NewRecord(id, safeID string) *Record {
	return &Record{ID: id, SafeID: safeID, UpdatedAt: time.Now().UTC()}
}

// Used returns the counter for the given category.
func (r *Record) Used(cat Category) int {
	switch cat {
	case CategoryListening:
		return int(r.ListeningUsed)
	case CategoryTranslation:
		return int(r.TranslationUsed)
	case CategoryPronunciation:
		return int(r.PronunciationUsed)
	}
	return 0
}

// SetUsed overwrites the counter for the given category.
func (r *Record) SetUsed(cat Category, n int) {
	if n < 0 {
		n = 0
	}
	switch cat {
	case CategoryListening:
		r.ListeningUsed = Count(n)
	case CategoryTranslation:
		r.TranslationUsed = Count(n)
	case CategoryPronunciation:
		r.PronunciationUsed = Count(n)
	}
}

// Normalize clamps all counters to zero or above. Decoding already floors
// and clamps, but records built in memory pass through here too.
func (r *Record) Normalize() *Record {
	if r.ListeningUsed < 0 {
		r.ListeningUsed = 0
	}
	if r.TranslationUsed < 0 {
		r.TranslationUsed = 0
	}
	if r.PronunciationUsed < 0 {
		r.PronunciationUsed = 0
	}
	return r
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	if r.ResetAt != nil {
		t := *r.ResetAt
		cp.ResetAt = &t
	}
	return &cp
}

// Limit is a per-category overall cap. Unlimited marshals as JSON null.
type Limit int64

// Unlimited marks a category with no cap.
const Unlimited Limit = -1

func (l Limit) IsUnlimited() bool {
	return l < 0
}

func (l Limit) MarshalJSON() ([]byte, error) {
	if l.IsUnlimited() {
		return []byte("null"), nil
	}
	return json.Marshal(int64(l))
}

func (l *Limit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Unlimited
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = Limit(n)
	return nil
}

// Limits holds the overall per-category caps, fixed at process start.
type Limits struct {
	Listening     Limit `json:"listening"`
	Translation   Limit `json:"translation"`
	Pronunciation Limit `json:"pronunciation"`
}

// ComputeLimits scales the per-section caps by the section count. A zero
// per-section cap makes the category unlimited.
func ComputeLimits(cfg config.QuotaConfig) Limits {
	sections := cfg.SectionCount
	if sections < 1 {
		sections = 1
	}
	scale := func(perSection int) Limit {
		if perSection <= 0 {
			return Unlimited
		}
		return Limit(int64(perSection) * int64(sections))
	}
	return Limits{
		Listening:     scale(cfg.ListeningPerSection),
		Translation:   scale(cfg.TranslationPerSection),
		Pronunciation: scale(cfg.PronunciationPerSection),
	}
}

// For returns the cap for the given category.
func (ls Limits) For(cat Category) Limit {
	switch cat {
	case CategoryListening:
		return ls.Listening
	case CategoryTranslation:
		return ls.Translation
	case CategoryPronunciation:
		return ls.Pronunciation
	}
	return Unlimited
}

// Remaining is the per-category headroom; unlimited categories are null.
type Remaining struct {
	Listening     Limit `json:"listening"`
	Translation   Limit `json:"translation"`
	Pronunciation Limit `json:"pronunciation"`
}

// ComputeRemaining returns max(0, limit-used) per category, passing
// unlimited through untouched.
func ComputeRemaining(rec *Record, limits Limits) Remaining {
	rem := func(cat Category) Limit {
		limit := limits.For(cat)
		if limit.IsUnlimited() {
			return Unlimited
		}
		left := int64(limit) - int64(rec.Used(cat))
		if left < 0 {
			left = 0
		}
		return Limit(left)
	}
	return Remaining{
		Listening:     rem(CategoryListening),
		Translation:   rem(CategoryTranslation),
		Pronunciation: rem(CategoryPronunciation),
	}
}
