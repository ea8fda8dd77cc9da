package streams

import "time"

// Stream name constants
const (
	StreamBriefingEvents = "briefings:events"
)

// Consumer group constants
const (
	GroupBriefingWorkers = "briefing-workers"
)

// Schema version constant
const (
	SchemaVersionV1 = "v1"
)

// Event types published on StreamBriefingEvents.
const (
	EventCreated = "briefing.created"
	EventUpdated = "briefing.updated"
	EventDeleted = "briefing.deleted"
)

// BriefingEvent records a change to a stored briefing.
type BriefingEvent struct {
	Type       string    `json:"type"`
	BriefingID string    `json:"briefing_id"`
	OwnerID    uint      `json:"owner_id"`
	Title      string    `json:"title,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
