package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the event name
type Kind string

// Event kinds
const (
	// KindAll subscribes a listener to every event
	KindAll Kind = "*"

	KindSuggestionServed Kind = "suggestion_served"
	KindSuggestionFailed Kind = "suggestion_failed"
	KindRollbackToggled  Kind = "rollback_toggled"
	KindToolRegistered   Kind = "tool_registered"
	KindToolUnregistered Kind = "tool_unregistered"
	KindToolUpdated      Kind = "tool_updated"
	KindCacheCleared     Kind = "cache_cleared"
	KindHealthChanged    Kind = "health_changed"
)

// Event is a notification delivered to listeners
type Event struct {
	ID   string         `json:"id" yaml:"id"`
	Kind Kind           `json:"kind" yaml:"kind"`
	Time time.Time      `json:"time" yaml:"time"`
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// New returns an event with a new ID
func New(kind Kind, data map[string]any) *Event {
	return &Event{
		ID:   uuid.NewString(),
		Kind: kind,
		Time: time.Now().UTC(),
		Data: data,
	}
}
