package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "relations:"

// RedisStore implements Store on Redis. Each room keeps its events in a hash;
// each (room, parent, rel_type, event_type) tuple is a sorted set of child
// event IDs scored by position.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// record is the hash value stored per event.
type record struct {
	Type     string          `json:"type"`
	Position Position        `json:"position"`
	Relation *Relation       `json:"relation,omitempty"`
	Raw      json.RawMessage `json:"raw"`
}

// NewRedisStore creates a store on top of an initialized client. The client
// stays owned by the caller.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) positionKey() string {
	return s.prefix + "position"
}

func (s *RedisStore) eventsKey(roomID string) string {
	return fmt.Sprintf("%sroom:%q", s.prefix, roomID)
}

func (s *RedisStore) relationKey(roomID, parentID, relType, eventType string) string {
	return fmt.Sprintf("%srel:%q:%q:%q:%q", s.prefix, roomID, parentID, relType, eventType)
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, ev Event) (Event, error) {
	existing, found, err := s.get(ctx, ev.RoomID, ev.ID)
	if err != nil {
		return Event{}, err
	}
	if found {
		// A previous attempt may have stored the event but failed to index it.
		return s.index(ctx, existing)
	}

	pos, err := s.client.Incr(ctx, s.positionKey()).Result()
	if err != nil {
		return Event{}, errors.Wrap(err, "allocate position")
	}
	ev.Position = Position(pos)

	data, err := json.Marshal(record{
		Type:     ev.Type,
		Position: ev.Position,
		Relation: ev.Relation,
		Raw:      ev.Raw,
	})
	if err != nil {
		return Event{}, errors.Wrap(err, "encode event")
	}

	added, err := s.client.HSetNX(ctx, s.eventsKey(ev.RoomID), ev.ID, data).Result()
	if err != nil {
		return Event{}, errors.Wrapf(err, "store event %s", ev.ID)
	}
	if !added {
		// Lost a race with a concurrent append of the same event.
		existing, _, err := s.get(ctx, ev.RoomID, ev.ID)
		if err != nil {
			return Event{}, err
		}
		return s.index(ctx, existing)
	}

	return s.index(ctx, ev)
}

// index adds ev to its relation set at its stored position. ZADD with an
// unchanged score is a no-op, so repeating it is safe.
func (s *RedisStore) index(ctx context.Context, ev Event) (Event, error) {
	if ev.Relation == nil {
		return ev, nil
	}
	key := s.relationKey(ev.RoomID, ev.Relation.ParentID, ev.Relation.RelType, ev.Type)
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: float64(ev.Position), Member: ev.ID}).Err(); err != nil {
		return Event{}, errors.Wrapf(err, "index event %s", ev.ID)
	}
	return ev, nil
}

func (s *RedisStore) get(ctx context.Context, roomID, eventID string) (Event, bool, error) {
	data, err := s.client.HGet(ctx, s.eventsKey(roomID), eventID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, errors.Wrapf(err, "get event %s", eventID)
	}

	ev, err := decodeRecord(roomID, eventID, data)
	if err != nil {
		return Event{}, false, err
	}
	return ev, true, nil
}

func decodeRecord(roomID, eventID string, data []byte) (Event, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Event{}, errors.Wrapf(err, "decode event %s", eventID)
	}
	return Event{
		ID:       eventID,
		RoomID:   roomID,
		Type:     rec.Type,
		Relation: rec.Relation,
		Raw:      rec.Raw,
		Position: rec.Position,
	}, nil
}

// HasEvent implements Store.
func (s *RedisStore) HasEvent(ctx context.Context, roomID, eventID string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.eventsKey(roomID), eventID).Result()
	if err != nil {
		return false, errors.Wrapf(err, "check event %s", eventID)
	}
	return ok, nil
}

// Relations implements Store.
func (s *RedisStore) Relations(ctx context.Context, q Query) (Page, error) {
	if err := q.validate(); err != nil {
		return Page{}, err
	}

	opt := &redis.ZRangeBy{Max: "+inf", Min: "-inf", Count: int64(q.Limit) + 1}
	if q.From != nil {
		opt.Max = "(" + strconv.FormatInt(int64(*q.From), 10)
	}
	if q.To != nil {
		opt.Min = "(" + strconv.FormatInt(int64(*q.To), 10)
	}

	members, err := s.client.ZRevRangeByScoreWithScores(ctx, s.relationKey(q.RoomID, q.ParentID, q.RelType, q.EventType), opt).Result()
	if err != nil {
		return Page{}, errors.Wrap(err, "range relations")
	}

	var page Page
	if len(members) > q.Limit {
		members = members[:q.Limit]
		last := Position(members[len(members)-1].Score)
		page.Next = &last
	}
	if len(members) == 0 {
		return page, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.Member.(string)
	}

	values, err := s.client.HMGet(ctx, s.eventsKey(q.RoomID), ids...).Result()
	if err != nil {
		return Page{}, errors.Wrap(err, "load relation events")
	}

	page.Events = make([]Event, 0, len(values))
	for i, v := range values {
		data, ok := v.(string)
		if !ok {
			return Page{}, errors.Errorf("relation index references missing event %s", ids[i])
		}
		ev, err := decodeRecord(q.RoomID, ids[i], []byte(data))
		if err != nil {
			return Page{}, err
		}
		page.Events = append(page.Events, ev)
	}
	return page, nil
}

// Close implements Store. The Redis client is closed by its owner.
func (s *RedisStore) Close() error {
	return nil
}
