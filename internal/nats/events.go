package nats

import "time"

// Stream name.
const StreamEvents = "FLUENTUP_EVENTS"

// Subjects. The action (increment, reset, delete) is the final token.
const SubjectUsagePrefix = "fluentup.events.usage"

// Usage event actions.
const (
	ActionIncrement = "increment"
	ActionReset     = "reset"
	ActionDelete    = "delete"
)

// UsageEvent is emitted after a usage record mutation has been persisted.
type UsageEvent struct {
	Action    string    `json:"action"`
	SafeID    string    `json:"safeId"`
	Category  string    `json:"category,omitempty"`
	Amount    int       `json:"amount,omitempty"`
	Used      int       `json:"used,omitempty"`
	Admin     bool      `json:"admin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
