package domain

import (
	"strings"
)

// ============================================================================
// Relation types
// ============================================================================

// RelationType identifies the kind of edge between a child event and its parent.
// Values outside the known set are carried verbatim.
type RelationType string

const (
	RelationAnnotation  RelationType = "m.annotation" // reactions
	RelationReference   RelationType = "m.reference"
	RelationReplacement RelationType = "m.replace" // edits
	RelationThread      RelationType = "m.thread"
)

// NewRelationType normalizes s into a RelationType.
func NewRelationType(s string) RelationType {
	return RelationType(strings.TrimSpace(s))
}

// Known reports whether t is one of the relation types this version understands.
func (t RelationType) Known() bool {
	switch t {
	case RelationAnnotation, RelationReference, RelationReplacement, RelationThread:
		return true
	}
	return false
}

func (t RelationType) String() string {
	return string(t)
}

// ============================================================================
// Event types
// ============================================================================

// EventType is the payload type of a child event. Matching is exact string
// equality after normalization; there is no wildcard form.
type EventType string

const (
	EventRoomMessage   EventType = "m.room.message"
	EventRoomEncrypted EventType = "m.room.encrypted"
	EventReaction      EventType = "m.reaction"
	EventSticker       EventType = "m.sticker"
	EventPollStart     EventType = "m.poll.start"
	EventPollResponse  EventType = "m.poll.response"
	EventPollEnd       EventType = "m.poll.end"
)

// NewEventType normalizes s into an EventType.
func NewEventType(s string) EventType {
	return EventType(strings.TrimSpace(s))
}

// Known reports whether t is one of the message-like event types this version understands.
func (t EventType) Known() bool {
	switch t {
	case EventRoomMessage, EventRoomEncrypted, EventReaction, EventSticker,
		EventPollStart, EventPollResponse, EventPollEnd:
		return true
	}
	return false
}

// Matches reports whether other names the same event type as t.
func (t EventType) Matches(other EventType) bool {
	return NewEventType(string(t)) == NewEventType(string(other))
}

func (t EventType) String() string {
	return string(t)
}
