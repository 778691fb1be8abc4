package storage

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ThreadRecord is one two-party conversation. UserA/UserB hold the canonical
// slot order (smaller id first), fixed for the lifetime of the thread.
type ThreadRecord struct {
	Key       string `gorm:"primaryKey;size:160"`
	UserA     string `gorm:"index;size:64"`
	UserB     string `gorm:"index;size:64"`
	CreatedAt time.Time
}

// MessageRecord is an immutable, append-only log entry. Seq is the storage
// insertion order and breaks timestamp ties.
type MessageRecord struct {
	Seq           uint64 `gorm:"primaryKey;autoIncrement"`
	ID            string `gorm:"uniqueIndex;size:64"`
	ThreadKey     string `gorm:"index;size:160"`
	SenderID      string `gorm:"index;size:64"`
	TextA         string `gorm:"type:text"`
	TextB         string `gorm:"type:text"`
	MediaRef      string `gorm:"type:text"`
	SentAt        time.Time
	TranslationOK bool
}

// InboxRecord is one owner's cached summary of a thread. It is derived from
// the message log and can be rebuilt from it at any time.
type InboxRecord struct {
	OwnerID     string `gorm:"primaryKey;size:64"`
	ThreadKey   string `gorm:"primaryKey;size:160"`
	PeerID      string `gorm:"size:64"`
	PeerName    string
	PeerPhoto   string `gorm:"type:text"`
	LastMessage string `gorm:"type:text"`
	LastUpdated time.Time
	Unread      int
}

// ReadMarkRecord remembers the last message sequence an owner has read in a
// thread so unread counts can be recomputed from the log alone.
type ReadMarkRecord struct {
	OwnerID     string `gorm:"primaryKey;size:64"`
	ThreadKey   string `gorm:"primaryKey;size:160"`
	LastReadSeq uint64
}

// UserRecord holds profile, language preference and theme for one user.
// Authentication itself lives outside this service; the id is whatever the
// auth collaborator hands us.
type UserRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	DisplayName string `gorm:"index"`
	Email       string `gorm:"index;size:128"`
	PhotoURL    string `gorm:"type:text"`
	Language    string `gorm:"size:16"`
	Theme       string `gorm:"size:16"`
	CreatedAt   time.Time
}

// Open opens (or creates) the sqlite database at path and migrates the
// schema. Use ":memory:" for throwaway databases in tests.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite allows one writer; funnel everything through a single
	// connection instead of surfacing busy errors to concurrent senders.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(
		&ThreadRecord{},
		&MessageRecord{},
		&InboxRecord{},
		&ReadMarkRecord{},
		&UserRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}
