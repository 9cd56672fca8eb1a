package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidEvent is returned for payloads that lack the envelope fields.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidQuery is returned for queries with a non-positive limit.
	ErrInvalidQuery = errors.New("invalid query")
)

// Position is an event's place in the store's topological order. Higher is
// more recent. Positions are unique within a store.
type Position int64

// Relation is the m.relates_to part of an event's content.
type Relation struct {
	RelType  string `json:"rel_type"`
	ParentID string `json:"event_id"`
}

// Event is a room event as held by the store.
type Event struct {
	ID       string
	RoomID   string
	Type     string
	Relation *Relation
	Raw      json.RawMessage
	Position Position
}

// Query selects the children of one parent event.
type Query struct {
	RoomID    string
	ParentID  string
	RelType   string
	EventType string

	// From excludes everything at or after this position. Nil starts at the newest event.
	From *Position
	// To excludes everything at or before this position. Nil runs to the oldest event.
	To *Position

	Limit int
}

// Page is one window of a relations traversal, newest first.
type Page struct {
	Events []Event
	// Next is set when more matching events remain in the window.
	Next *Position
}

// Store defines the interface for relation-indexed event storage.
type Store interface {
	// Append stores an event, assigns its position and indexes its relation.
	// Appending an event ID the room already has returns the stored event.
	Append(ctx context.Context, ev Event) (Event, error)

	// HasEvent reports whether the room contains the event.
	HasEvent(ctx context.Context, roomID, eventID string) (bool, error)

	// Relations returns up to q.Limit children matching q in descending position order.
	Relations(ctx context.Context, q Query) (Page, error)

	// Close releases resources held by the store.
	Close() error
}

type envelope struct {
	EventID string `json:"event_id"`
	RoomID  string `json:"room_id"`
	Type    string `json:"type"`
	Content struct {
		RelatesTo *Relation `json:"m.relates_to"`
	} `json:"content"`
}

// ParseEvent decodes the envelope of a raw room event. Content beyond
// m.relates_to is left untouched in Raw.
func ParseEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, errors.Wrap(ErrInvalidEvent, err.Error())
	}
	if env.EventID == "" || env.RoomID == "" || env.Type == "" {
		return Event{}, errors.Wrap(ErrInvalidEvent, "event_id, room_id and type are required")
	}

	ev := Event{
		ID:     env.EventID,
		RoomID: env.RoomID,
		Type:   env.Type,
		Raw:    append(json.RawMessage(nil), raw...),
	}
	if rel := env.Content.RelatesTo; rel != nil && rel.RelType != "" && rel.ParentID != "" {
		ev.Relation = rel
	}
	return ev, nil
}

func (q Query) validate() error {
	if q.Limit <= 0 {
		return errors.Wrapf(ErrInvalidQuery, "limit %d", q.Limit)
	}
	return nil
}

// window reports whether p lies strictly inside (q.To, q.From).
func (q Query) window(p Position) bool {
	if q.From != nil && p >= *q.From {
		return false
	}
	if q.To != nil && p <= *q.To {
		return false
	}
	return true
}
