package directory

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lingochat/internal/chat"
	"lingochat/internal/storage"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// Users is the profile directory. Registration and credentials live with the
// external auth collaborator; this service only keeps the snapshot fields the
// chat core reads (display name, photo, language, theme).
type Users struct {
	db       *gorm.DB
	presence Presence
}

func NewUsers(db *gorm.DB, presence Presence) *Users {
	return &Users{db: db, presence: presence}
}

// NewUser carries the fields accepted at registration.
type NewUser struct {
	ID          string
	DisplayName string
	Email       string
	PhotoURL    string
}

// Register creates the user with the default language and theme.
func (u *Users) Register(user NewUser) error {
	rec := storage.UserRecord{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		PhotoURL:    user.PhotoURL,
		Language:    chat.DefaultLanguage,
		Theme:       "light",
	}
	res := u.db.Create(&rec)
	if res.Error != nil {
		var existing storage.UserRecord
		if err := u.db.Where("id = ?", user.ID).First(&existing).Error; err == nil {
			return ErrUserExists
		}
		return fmt.Errorf("register user %s: %w", user.ID, res.Error)
	}
	return nil
}

// Profile returns the point-in-time snapshot for one user, online flag
// included.
func (u *Users) Profile(userID string) (chat.Profile, error) {
	var rec storage.UserRecord
	if err := u.db.Where("id = ?", userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Profile{}, ErrUserNotFound
		}
		return chat.Profile{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	online := false
	if u.presence != nil {
		online = u.presence.IsOnline(userID)
	}
	return chat.Profile{
		ID:          rec.ID,
		DisplayName: rec.DisplayName,
		PhotoURL:    rec.PhotoURL,
		Online:      online,
	}, nil
}

// SearchByName returns profiles whose display name starts with the prefix,
// excluding the caller. Empty prefixes match nobody.
func (u *Users) SearchByName(prefix, excludeID string) ([]chat.Profile, error) {
	if prefix == "" {
		return nil, nil
	}
	var recs []storage.UserRecord
	err := u.db.Where("display_name LIKE ? AND id <> ?", prefix+"%", excludeID).
		Order("display_name asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("search users %q: %w", prefix, err)
	}
	out := make([]chat.Profile, 0, len(recs))
	for _, rec := range recs {
		online := false
		if u.presence != nil {
			online = u.presence.IsOnline(rec.ID)
		}
		out = append(out, chat.Profile{
			ID:          rec.ID,
			DisplayName: rec.DisplayName,
			PhotoURL:    rec.PhotoURL,
			Online:      online,
		})
	}
	return out, nil
}

// SetTheme stores the user's UI theme; per-user configuration, not process
// state.
func (u *Users) SetTheme(userID, theme string) error {
	res := u.db.Model(&storage.UserRecord{}).Where("id = ?", userID).Update("theme", theme)
	if res.Error != nil {
		return fmt.Errorf("set theme for %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
