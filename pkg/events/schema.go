package events

import (
	"time"

	"github.com/Ramsey-B/iris/pkg/models"
)

// EventType defines the type of event
type EventType string

const (
	EventTypeDecisionMade    EventType = "decision.made"
	EventTypeEntityCreated   EventType = "entity.created"
	EventTypeSettingsChanged EventType = "settings.changed"
	EventTypeIndexRebuilt    EventType = "index.rebuilt"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	TraceID       string    `json:"trace_id,omitempty"`
}

// DecisionMadeEvent carries one decision record
type DecisionMadeEvent struct {
	BaseEvent
	Record models.DecisionRecord `json:"record"`
}

// EntityCreatedEvent is emitted when an entity is added to the store and index
type EntityCreatedEvent struct {
	BaseEvent
	Entity models.StoredEntity `json:"entity"`
}

// SettingsChangedEvent records a reconfiguration. Previous and Current are the
// settings snapshots before and after.
type SettingsChangedEvent struct {
	BaseEvent
	Previous any `json:"previous"`
	Current  any `json:"current"`
}

// IndexRebuiltEvent records a completed index rebuild
type IndexRebuiltEvent struct {
	BaseEvent
	Entities   int    `json:"entities"`
	Generation uint64 `json:"generation"`
}
