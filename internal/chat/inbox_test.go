package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPresence map[string]bool

func (p fixedPresence) IsOnline(userID string) bool { return p[userID] }

func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func TestInboxIndex(t *testing.T) {
	key := DeriveKey("alice", "bob")

	t.Run("UpsertCreatesAndMerges", func(t *testing.T) {
		x := NewInboxIndex(openTestDB(t), nil)

		now := time.Now()
		bob := Profile{ID: "bob", DisplayName: "Bob"}
		require.NoError(t, x.Upsert("alice", key, EntryPatch{Counterpart: &bob, LastUpdated: &now}))

		// second patch only touches the preview
		require.NoError(t, x.Upsert("alice", key, EntryPatch{LastMessage: strPtr("hi")}))

		list, err := x.Snapshot("alice")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Bob", list[0].Counterpart.DisplayName, "merge kept earlier fields")
		assert.Equal(t, "hi", list[0].LastMessage)
		assert.Equal(t, 0, list[0].Unread)
	})

	t.Run("UnreadCounting", func(t *testing.T) {
		x := NewInboxIndex(openTestDB(t), nil)
		require.NoError(t, x.Upsert("bob", key, EntryPatch{}))
		require.NoError(t, x.Upsert("alice", key, EntryPatch{}))

		// three sends from alice: only bob's entry is bumped
		for i := 0; i < 3; i++ {
			require.NoError(t, x.IncrementUnread("bob", key))
		}

		bobList, err := x.Snapshot("bob")
		require.NoError(t, err)
		require.Len(t, bobList, 1)
		assert.Equal(t, 3, bobList[0].Unread)

		aliceList, err := x.Snapshot("alice")
		require.NoError(t, err)
		require.Len(t, aliceList, 1)
		assert.Equal(t, 0, aliceList[0].Unread, "sender's own count untouched")

		require.NoError(t, x.ResetUnread("bob", key))
		bobList, err = x.Snapshot("bob")
		require.NoError(t, err)
		assert.Equal(t, 0, bobList[0].Unread)
	})

	t.Run("SnapshotSortedByLastUpdatedDesc", func(t *testing.T) {
		x := NewInboxIndex(openTestDB(t), nil)

		older := time.Now().Add(-time.Hour)
		newer := time.Now()
		require.NoError(t, x.Upsert("alice", DeriveKey("alice", "bob"), EntryPatch{LastUpdated: &older}))
		require.NoError(t, x.Upsert("alice", DeriveKey("alice", "carol"), EntryPatch{LastUpdated: &newer}))

		list, err := x.Snapshot("alice")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, DeriveKey("alice", "carol"), list[0].ThreadKey)
		assert.Equal(t, DeriveKey("alice", "bob"), list[1].ThreadKey)
	})

	t.Run("OnlineFlagFromPresence", func(t *testing.T) {
		x := NewInboxIndex(openTestDB(t), fixedPresence{"bob": true})

		bob := Profile{ID: "bob", DisplayName: "Bob"}
		require.NoError(t, x.Upsert("alice", key, EntryPatch{Counterpart: &bob}))

		list, err := x.Snapshot("alice")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].Counterpart.Online)
	})

	t.Run("SubscribeAndCancel", func(t *testing.T) {
		x := NewInboxIndex(openTestDB(t), nil)
		require.NoError(t, x.Upsert("alice", key, EntryPatch{}))

		var snapshots [][]InboxEntry
		sub := x.Subscribe("alice", func(list []InboxEntry) {
			snapshots = append(snapshots, list)
		})
		require.Len(t, snapshots, 1, "initial snapshot")

		require.NoError(t, x.IncrementUnread("alice", key))
		require.Len(t, snapshots, 2)
		assert.Equal(t, 1, snapshots[1][0].Unread)

		sub.Cancel()
		require.NoError(t, x.IncrementUnread("alice", key))
		assert.Len(t, snapshots, 2, "no delivery after cancel")
	})

	t.Run("PartialFailureLeavesLogAlone", func(t *testing.T) {
		// inbox writes for a missing entry are no-ops, not corruption
		x := NewInboxIndex(openTestDB(t), nil)
		require.NoError(t, x.IncrementUnread("nobody", key))
		list, err := x.Snapshot("nobody")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
