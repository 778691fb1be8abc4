package chat

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lingochat/internal/storage"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func newMsg(sender, text string) *Message {
	return &Message{
		ID:            uuid.NewString(),
		SenderID:      sender,
		TextA:         text,
		TextB:         text,
		SentAt:        time.Now(),
		TranslationOK: true,
	}
}

func TestMessageStore(t *testing.T) {
	key := DeriveKey("alice", "bob")

	t.Run("CreateThreadIdempotent", func(t *testing.T) {
		s := NewMessageStore(openTestDB(t))
		require.NoError(t, s.CreateThread(key))
		require.NoError(t, s.CreateThread(key))

		ok, err := s.Exists(key)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("AppendToMissingThread", func(t *testing.T) {
		s := NewMessageStore(openTestDB(t))
		err := s.Append("alice_bob", newMsg("alice", "hi"))
		assert.ErrorIs(t, err, ErrThreadNotFound)

		msgs, err := s.Messages("alice_bob")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("AppendAssignsSequenceAndOrder", func(t *testing.T) {
		s := NewMessageStore(openTestDB(t))
		require.NoError(t, s.CreateThread(key))

		first := newMsg("alice", "one")
		second := newMsg("bob", "two")
		require.NoError(t, s.Append(key, first))
		require.NoError(t, s.Append(key, second))
		assert.Less(t, first.Seq, second.Seq)

		msgs, err := s.Messages(key)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "one", msgs[0].TextA)
		assert.Equal(t, "two", msgs[1].TextA)
	})

	t.Run("SubscribeDeliversFullList", func(t *testing.T) {
		s := NewMessageStore(openTestDB(t))
		require.NoError(t, s.CreateThread(key))
		require.NoError(t, s.Append(key, newMsg("alice", "hi")))

		var mu sync.Mutex
		var snapshots [][]Message
		sub := s.Subscribe(key, func(msgs []Message) {
			mu.Lock()
			snapshots = append(snapshots, msgs)
			mu.Unlock()
		})
		defer sub.Cancel()

		// initial snapshot
		mu.Lock()
		require.Len(t, snapshots, 1)
		assert.Len(t, snapshots[0], 1)
		mu.Unlock()

		require.NoError(t, s.Append(key, newMsg("bob", "hello")))

		mu.Lock()
		require.Len(t, snapshots, 2)
		assert.Len(t, snapshots[1], 2)
		mu.Unlock()
	})

	t.Run("CancelStopsDelivery", func(t *testing.T) {
		s := NewMessageStore(openTestDB(t))
		require.NoError(t, s.CreateThread(key))

		calls := 0
		sub := s.Subscribe(key, func([]Message) { calls++ })
		sub.Cancel()
		sub.Cancel() // idempotent

		require.NoError(t, s.Append(key, newMsg("alice", "after")))
		assert.Equal(t, 1, calls, "only the initial snapshot")
	})

	t.Run("ConcurrentAppendsBothPreserved", func(t *testing.T) {
		s := NewMessageStore(openTestDB(t))
		require.NoError(t, s.CreateThread(key))

		const perSide = 10
		var wg sync.WaitGroup
		wg.Add(2)
		for _, sender := range []string{"alice", "bob"} {
			go func(sender string) {
				defer wg.Done()
				for i := 0; i < perSide; i++ {
					_ = s.Append(key, newMsg(sender, "m"))
				}
			}(sender)
		}
		wg.Wait()

		msgs, err := s.Messages(key)
		require.NoError(t, err)
		assert.Len(t, msgs, 2*perSide, "no lost updates")
		seen := make(map[uint64]bool, len(msgs))
		for _, m := range msgs {
			assert.False(t, seen[m.Seq], "duplicate seq %d", m.Seq)
			seen[m.Seq] = true
		}
	})
}
