package messaging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// EventKind names a persistence lifecycle event.
type EventKind string

const (
	EventWorldSaved      EventKind = "world_saved"
	EventWorldLoaded     EventKind = "world_loaded"
	EventColonyConverted EventKind = "colony_converted"
	EventColonyLoaded    EventKind = "colony_loaded"
	EventColonyStarted   EventKind = "colony_started"
	EventColonySwitched  EventKind = "colony_switched"
	EventColonyDeleted   EventKind = "colony_deleted"
	EventFactionReset    EventKind = "faction_reset"
)

// Event is the JSON payload published for each lifecycle event.
type Event struct {
	Kind     EventKind `json:"kind"`
	WorldID  string    `json:"world_id"`
	ColonyID int       `json:"colony_id,omitempty"`
	At       time.Time `json:"at"`
	Detail   string    `json:"detail,omitempty"`
}

// Publisher delivers raw messages to a subject.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// EventPublisher encodes events and publishes them under persist.<world>.<kind>.
type EventPublisher struct {
	pub Publisher
	now func() time.Time
}

func NewEventPublisher(pub Publisher) *EventPublisher {
	return &EventPublisher{pub: pub, now: time.Now}
}

// Subject returns the subject events of kind for a world are published on.
func Subject(worldID string, kind EventKind) string {
	return fmt.Sprintf("persist.%s.%s", worldID, kind)
}

// Emit publishes an event. Delivery failures are logged and never block
// persistence, so Emit has no error result. A nil publisher drops events.
func (p *EventPublisher) Emit(kind EventKind, worldID string, colonyID int, detail string) {
	if p == nil || p.pub == nil {
		return
	}

	ev := Event{
		Kind:     kind,
		WorldID:  worldID,
		ColonyID: colonyID,
		At:       p.now().UTC(),
		Detail:   detail,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("encoding persistence event", "kind", kind, "error", err)
		return
	}
	if err := p.pub.Publish(Subject(worldID, kind), data); err != nil {
		slog.Warn("publishing persistence event", "kind", kind, "world", worldID, "error", err)
	}
}
