package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lingochat/internal/storage"
)

func seedUser(t *testing.T, db *gorm.DB, id, name, lang string) {
	t.Helper()
	require.NoError(t, db.Create(&storage.UserRecord{
		ID:          id,
		DisplayName: name,
		Language:    lang,
	}).Error)
}

func TestLanguageDirectory(t *testing.T) {
	t.Run("DefaultForUnknownUser", func(t *testing.T) {
		d := NewLanguageDirectory(openTestDB(t))
		code, err := d.Get("ghost")
		require.NoError(t, err)
		assert.Equal(t, DefaultLanguage, code)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		db := openTestDB(t)
		seedUser(t, db, "carol", "Carol", "en")
		d := NewLanguageDirectory(db)

		require.NoError(t, d.Set("carol", "hi"))
		code, err := d.Get("carol")
		require.NoError(t, err)
		assert.Equal(t, "hi", code)
	})

	t.Run("SetUnknownUserFails", func(t *testing.T) {
		d := NewLanguageDirectory(openTestDB(t))

		var seen []string
		sub := d.Subscribe("ghost", func(code string) { seen = append(seen, code) })
		defer sub.Cancel()
		require.Equal(t, []string{DefaultLanguage}, seen)

		assert.ErrorIs(t, d.Set("ghost", "hi"), ErrUnknownUser)
		assert.Len(t, seen, 1, "failed set publishes nothing")
	})

	t.Run("SubscribeTracksChanges", func(t *testing.T) {
		db := openTestDB(t)
		seedUser(t, db, "carol", "Carol", "en")
		d := NewLanguageDirectory(db)

		var seen []string
		sub := d.Subscribe("carol", func(code string) { seen = append(seen, code) })
		require.Equal(t, []string{"en"}, seen, "initial value")

		require.NoError(t, d.Set("carol", "mr"))
		assert.Equal(t, []string{"en", "mr"}, seen)

		sub.Cancel()
		require.NoError(t, d.Set("carol", "hi"))
		assert.Len(t, seen, 2, "no delivery after cancel")
	})
}
