// Package events defines the notifications published while flows are edited.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every designer event.
const Topic = "flowdesigner.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Flow lifecycle events.
	FlowOpenedEvent  EventType = "flow.opened"
	FlowClosedEvent  EventType = "flow.closed"
	FlowSavedEvent   EventType = "flow.saved"
	FlowDeletedEvent EventType = "flow.deleted"

	// Editing events.
	FlowMutatedEvent      EventType = "flow.mutated"
	SelectionChangedEvent EventType = "flow.selection.changed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FlowID    string         `json:"flow_id"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// FlowOpened is published when a session starts editing a flow.
type FlowOpened struct {
	BaseEvent

	Name    string `json:"name"`
	Created bool   `json:"created"`
}

func (e FlowOpened) GetType() EventType {
	return FlowOpenedEvent
}

// FlowClosed is published when a session is discarded.
type FlowClosed struct {
	BaseEvent

	Dirty bool `json:"dirty"`
}

func (e FlowClosed) GetType() EventType {
	return FlowClosedEvent
}

// FlowSaved is published after an exported document reached persistence.
type FlowSaved struct {
	BaseEvent

	Name       string    `json:"name"`
	Version    int       `json:"version"`
	NodeCount  int       `json:"node_count"`
	EdgeCount  int       `json:"edge_count"`
	RuleCount  int       `json:"rule_count"`
	ExportedAt time.Time `json:"exported_at"`
	Autosave   bool      `json:"autosave"`
}

func (e FlowSaved) GetType() EventType {
	return FlowSavedEvent
}

// FlowDeleted is published after a stored flow was removed.
type FlowDeleted struct {
	BaseEvent
}

func (e FlowDeleted) GetType() EventType {
	return FlowDeletedEvent
}

// FlowMutated is published after each successful edit of an open flow.
type FlowMutated struct {
	BaseEvent

	Operation string `json:"operation"`
	NodeID    string `json:"node_id,omitempty"`
	EdgeID    string `json:"edge_id,omitempty"`
	CanUndo   bool   `json:"can_undo"`
	CanRedo   bool   `json:"can_redo"`
}

func (e FlowMutated) GetType() EventType {
	return FlowMutatedEvent
}

// SelectionChanged is published when the selected node or edge changes.
type SelectionChanged struct {
	BaseEvent

	NodeID string `json:"node_id,omitempty"`
	EdgeID string `json:"edge_id,omitempty"`
}

func (e SelectionChanged) GetType() EventType {
	return SelectionChangedEvent
}

func NewBaseEvent(eventType EventType, flowID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FlowID:    flowID,
		Metadata:  make(map[string]any),
	}
}
