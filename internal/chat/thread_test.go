package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	t.Run("Commutative", func(t *testing.T) {
		pairs := [][2]string{
			{"alice", "bob"},
			{"bob", "alice"},
			{"zoe", "adam"},
			{"u-1", "u-2"},
			{"FGmfyvWO55XPkxHsAchme8lJEy03", "9aXk2"},
		}
		for _, p := range pairs {
			assert.Equal(t, DeriveKey(p[0], p[1]), DeriveKey(p[1], p[0]), "pair %v", p)
		}
	})

	t.Run("SmallerIDFirst", func(t *testing.T) {
		assert.Equal(t, "alice_bob", DeriveKey("alice", "bob"))
		assert.Equal(t, "alice_bob", DeriveKey("bob", "alice"))
	})
}

func TestSplitKey(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		a, b, err := SplitKey(DeriveKey("carol", "alice"))
		require.NoError(t, err)
		assert.Equal(t, "alice", a)
		assert.Equal(t, "carol", b)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, key := range []string{"", "alice", "alice_", "_bob"} {
			_, _, err := SplitKey(key)
			assert.ErrorIs(t, err, ErrBadThreadKey, "key %q", key)
		}
	})
}

func TestCounterpart(t *testing.T) {
	key := DeriveKey("alice", "bob")

	other, err := Counterpart(key, "alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", other)

	other, err = Counterpart(key, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", other)

	_, err = Counterpart(key, "mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestMessageTextFor(t *testing.T) {
	msg := Message{ThreadKey: "alice_bob", TextA: "hello", TextB: "नमस्ते"}
	assert.Equal(t, "hello", msg.TextFor("alice"))
	assert.Equal(t, "नमस्ते", msg.TextFor("bob"))
}
