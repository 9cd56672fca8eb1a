package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRoom   = "!abc:example.org"
	testParent = "$parent:example.org"
)

func rawEvent(id, room, typ, relType, parent string) []byte {
	if relType == "" {
		return []byte(fmt.Sprintf(`{"event_id":%q,"room_id":%q,"type":%q,"content":{"body":"x"}}`, id, room, typ))
	}
	return []byte(fmt.Sprintf(
		`{"event_id":%q,"room_id":%q,"type":%q,"content":{"body":"x","m.relates_to":{"rel_type":%q,"event_id":%q}}}`,
		id, room, typ, relType, parent,
	))
}

func mustAppend(t *testing.T, s Store, raw []byte) Event {
	t.Helper()
	ev, err := ParseEvent(raw)
	require.NoError(t, err)
	stored, err := s.Append(context.Background(), ev)
	require.NoError(t, err)
	return stored
}

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func threadQuery(limit int) Query {
	return Query{
		RoomID:    testRoom,
		ParentID:  testParent,
		RelType:   "m.thread",
		EventType: "m.room.message",
		Limit:     limit,
	}
}

// seed stores the parent, n matching children ($e1 oldest) and unrelated noise.
func seed(t *testing.T, s Store, n int) {
	t.Helper()
	mustAppend(t, s, rawEvent(testParent, testRoom, "m.room.message", "", ""))
	for i := 1; i <= n; i++ {
		mustAppend(t, s, rawEvent(fmt.Sprintf("$e%d", i), testRoom, "m.room.message", "m.thread", testParent))

		mustAppend(t, s, rawEvent(fmt.Sprintf("$react%d", i), testRoom, "m.reaction", "m.annotation", testParent))
		mustAppend(t, s, rawEvent(fmt.Sprintf("$enc%d", i), testRoom, "m.room.encrypted", "m.thread", testParent))
		mustAppend(t, s, rawEvent(fmt.Sprintf("$other%d", i), testRoom, "m.room.message", "m.thread", "$other:example.org"))
		mustAppend(t, s, rawEvent(fmt.Sprintf("$elsewhere%d", i), "!xyz:example.org", "m.room.message", "m.thread", testParent))
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		fn(t, NewRedisStore(client, "test:"))
	})
}

func TestRelationsPaging(t *testing.T) {
	ctx := context.Background()

	forEachStore(t, func(t *testing.T, s Store) {
		seed(t, s, 3)

		first, err := s.Relations(ctx, threadQuery(2))
		require.NoError(t, err)
		assert.Equal(t, []string{"$e3", "$e2"}, ids(first.Events))
		require.NotNil(t, first.Next)
		assert.Equal(t, first.Events[1].Position, *first.Next)

		q := threadQuery(2)
		q.From = first.Next
		second, err := s.Relations(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"$e1"}, ids(second.Events))
		assert.Nil(t, second.Next)
	})
}

func TestRelationsFullTraversal(t *testing.T) {
	ctx := context.Background()

	forEachStore(t, func(t *testing.T, s Store) {
		const total = 7
		seed(t, s, total)

		for limit := 1; limit <= total+1; limit++ {
			t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
				var (
					seen  []Event
					from  *Position
					calls int
				)
				for {
					q := threadQuery(limit)
					q.From = from
					page, err := s.Relations(ctx, q)
					require.NoError(t, err)
					calls++
					assert.LessOrEqual(t, len(page.Events), limit)

					seen = append(seen, page.Events...)
					if page.Next == nil {
						break
					}
					from = page.Next
					require.LessOrEqual(t, calls, total, "traversal does not terminate")
				}

				require.Len(t, seen, total)
				for i := 1; i < len(seen); i++ {
					assert.Greater(t, seen[i-1].Position, seen[i].Position)
				}
				assert.Equal(t, "$e7", seen[0].ID)
				assert.Equal(t, "$e1", seen[total-1].ID)
			})
		}
	})
}

func TestRelationsBounds(t *testing.T) {
	ctx := context.Background()

	forEachStore(t, func(t *testing.T, s Store) {
		seed(t, s, 5)
		all, err := s.Relations(ctx, threadQuery(10))
		require.NoError(t, err)
		require.Len(t, all.Events, 5)
		byID := make(map[string]Position)
		for _, ev := range all.Events {
			byID[ev.ID] = ev.Position
		}

		t.Run("to is exclusive", func(t *testing.T) {
			q := threadQuery(10)
			to := byID["$e2"]
			q.To = &to
			page, err := s.Relations(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, []string{"$e5", "$e4", "$e3"}, ids(page.Events))
			assert.Nil(t, page.Next)
		})

		t.Run("no next when the window ends at to", func(t *testing.T) {
			q := threadQuery(2)
			from, to := byID["$e5"], byID["$e2"]
			q.From, q.To = &from, &to
			page, err := s.Relations(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, []string{"$e4", "$e3"}, ids(page.Events))
			assert.Nil(t, page.Next)
		})

		t.Run("to not preceding from yields nothing", func(t *testing.T) {
			q := threadQuery(10)
			from, to := byID["$e2"], byID["$e4"]
			q.From, q.To = &from, &to
			page, err := s.Relations(ctx, q)
			require.NoError(t, err)
			assert.Empty(t, page.Events)
			assert.Nil(t, page.Next)
		})

		t.Run("repeated query is identical", func(t *testing.T) {
			q := threadQuery(2)
			a, err := s.Relations(ctx, q)
			require.NoError(t, err)
			b, err := s.Relations(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	})
}

func TestRelationsEmpty(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustAppend(t, s, rawEvent(testParent, testRoom, "m.room.message", "", ""))

		page, err := s.Relations(context.Background(), threadQuery(5))
		require.NoError(t, err)
		assert.Empty(t, page.Events)
		assert.Nil(t, page.Next)
	})
}

func TestRelationsInvalidLimit(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.Relations(context.Background(), threadQuery(0))
		assert.True(t, errors.Is(err, ErrInvalidQuery))
	})
}

func TestAppend(t *testing.T) {
	ctx := context.Background()

	forEachStore(t, func(t *testing.T, s Store) {
		first := mustAppend(t, s, rawEvent("$a", testRoom, "m.room.message", "", ""))
		second := mustAppend(t, s, rawEvent("$b", testRoom, "m.room.message", "", ""))
		assert.Greater(t, second.Position, first.Position)

		again := mustAppend(t, s, rawEvent("$a", testRoom, "m.room.message", "", ""))
		assert.Equal(t, first.Position, again.Position)

		ok, err := s.HasEvent(ctx, testRoom, "$a")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.HasEvent(ctx, "!xyz:example.org", "$a")
		require.NoError(t, err)
		assert.False(t, ok)

		assert.NoError(t, s.Close())
	})
}

func TestParseEvent(t *testing.T) {
	t.Run("relation is extracted", func(t *testing.T) {
		ev, err := ParseEvent(rawEvent("$c", testRoom, "m.reaction", "m.annotation", testParent))
		require.NoError(t, err)
		assert.Equal(t, "$c", ev.ID)
		assert.Equal(t, testRoom, ev.RoomID)
		assert.Equal(t, "m.reaction", ev.Type)
		require.NotNil(t, ev.Relation)
		assert.Equal(t, "m.annotation", ev.Relation.RelType)
		assert.Equal(t, testParent, ev.Relation.ParentID)
	})

	t.Run("plain event has no relation", func(t *testing.T) {
		ev, err := ParseEvent(rawEvent("$c", testRoom, "m.room.message", "", ""))
		require.NoError(t, err)
		assert.Nil(t, ev.Relation)
	})

	t.Run("incomplete relation is ignored", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"event_id":"$c","room_id":"!r:s","type":"m.room.message","content":{"m.relates_to":{"rel_type":"m.thread"}}}`))
		require.NoError(t, err)
		assert.Nil(t, ev.Relation)
	})

	t.Run("missing envelope fields", func(t *testing.T) {
		_, err := ParseEvent([]byte(`{"type":"m.room.message"}`))
		assert.True(t, errors.Is(err, ErrInvalidEvent))
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseEvent([]byte(`nope`))
		assert.True(t, errors.Is(err, ErrInvalidEvent))
	})
}

func TestToken(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for _, p := range []Position{0, 1, 42, 1 << 40} {
			got, err := ParseToken(MintToken(p))
			require.NoError(t, err)
			assert.Equal(t, p, got)
		}
	})

	t.Run("foreign tokens are rejected", func(t *testing.T) {
		for _, s := range []string{"", "r", "s72594_4483_1934", "tok1", "r-5", "rabc"} {
			_, err := ParseToken(s)
			assert.True(t, errors.Is(err, ErrInvalidToken), s)
		}
	})
}

func TestRedisAppendRetryRepairsIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisStore(client, "test:")
	ctx := context.Background()

	mustAppend(t, s, rawEvent(testParent, testRoom, "m.room.message", "", ""))
	ev, err := ParseEvent(rawEvent("$e1", testRoom, "m.room.message", "m.thread", testParent))
	require.NoError(t, err)

	// A non-zset value makes ZADD fail after the event hash is written.
	key := s.relationKey(testRoom, testParent, "m.thread", "m.room.message")
	require.NoError(t, mr.Set(key, "blocked"))
	_, err = s.Append(ctx, ev)
	require.Error(t, err)

	found, err := s.HasEvent(ctx, testRoom, "$e1")
	require.NoError(t, err)
	assert.True(t, found)

	mr.Del(key)
	stored, err := s.Append(ctx, ev)
	require.NoError(t, err)

	page, err := s.Relations(ctx, threadQuery(5))
	require.NoError(t, err)
	assert.Equal(t, []string{"$e1"}, ids(page.Events))
	assert.Equal(t, stored.Position, page.Events[0].Position)

	score, err := client.ZScore(ctx, key, "$e1").Result()
	require.NoError(t, err)
	assert.Equal(t, float64(stored.Position), score)
}
