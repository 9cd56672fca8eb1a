package store

import (
	"context"
	"sync"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	position Position
	events   map[string]map[string]Event // room -> event id -> event
	index    map[relationKey][]Event     // ascending by position
}

type relationKey struct {
	roomID    string
	parentID  string
	relType   string
	eventType string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]map[string]Event),
		index:  make(map[relationKey][]Event),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, ev Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.events[ev.RoomID]
	if !ok {
		room = make(map[string]Event)
		s.events[ev.RoomID] = room
	}
	if existing, ok := room[ev.ID]; ok {
		return existing, nil
	}

	s.position++
	ev.Position = s.position
	room[ev.ID] = ev

	if ev.Relation != nil {
		key := relationKey{ev.RoomID, ev.Relation.ParentID, ev.Relation.RelType, ev.Type}
		s.index[key] = append(s.index[key], ev)
	}
	return ev, nil
}

// HasEvent implements Store.
func (s *MemoryStore) HasEvent(_ context.Context, roomID, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.events[roomID][eventID]
	return ok, nil
}

// Relations implements Store.
func (s *MemoryStore) Relations(_ context.Context, q Query) (Page, error) {
	if err := q.validate(); err != nil {
		return Page{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	children := s.index[relationKey{q.RoomID, q.ParentID, q.RelType, q.EventType}]

	var page Page
	for i := len(children) - 1; i >= 0; i-- {
		ev := children[i]
		if !q.window(ev.Position) {
			if q.To != nil && ev.Position <= *q.To {
				break
			}
			continue
		}
		if len(page.Events) == q.Limit {
			last := page.Events[len(page.Events)-1].Position
			page.Next = &last
			break
		}
		page.Events = append(page.Events, ev)
	}
	return page, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
