package chat

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lingochat/internal/storage"
)

// DefaultLanguage is assigned at registration and assumed for users who have
// never picked one.
const DefaultLanguage = "en"

var ErrUnknownUser = errors.New("user is not registered")

// LanguageDirectory tracks each user's current preferred language. Readable
// by anyone about to compose a message to that user, live-subscribable so a
// counterpart's composer keeps translating correctly without fresh reads.
type LanguageDirectory struct {
	db   *gorm.DB
	subs *fanout
}

func NewLanguageDirectory(db *gorm.DB) *LanguageDirectory {
	return &LanguageDirectory{db: db, subs: newFanout()}
}

// Get returns the user's current language code, or DefaultLanguage when the
// user is unknown or has never set one.
func (d *LanguageDirectory) Get(userID string) (string, error) {
	var rec storage.UserRecord
	err := d.db.Select("language").Where("id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultLanguage, nil
	}
	if err != nil {
		return "", fmt.Errorf("load language for %s: %w", userID, err)
	}
	if rec.Language == "" {
		return DefaultLanguage, nil
	}
	return rec.Language, nil
}

// Set updates the user's language and pushes the new code to subscribers.
// Fails with ErrUnknownUser for ids that were never registered; nothing is
// published on failure.
func (d *LanguageDirectory) Set(userID, code string) error {
	res := d.db.Model(&storage.UserRecord{}).Where("id = ?", userID).Update("language", code)
	if res.Error != nil {
		return fmt.Errorf("set language for %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUnknownUser
	}
	d.subs.publish(userID, code)
	return nil
}

// Subscribe delivers the user's current code immediately and again on every
// change until cancelled.
func (d *LanguageDirectory) Subscribe(userID string, onChange func(string)) *Subscription {
	sub := d.subs.add(userID, func(v any) { onChange(v.(string)) })
	if code, err := d.Get(userID); err == nil {
		onChange(code)
	}
	return sub
}
