package chat

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lingochat/internal/storage"
)

var ErrThreadNotFound = errors.New("thread does not exist")

// MessageStore is the system of record for conversation content: an
// append-only log per thread, plus live subscriptions that receive the full
// ordered message list after every change.
type MessageStore struct {
	db   *gorm.DB
	subs *fanout
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db, subs: newFanout()}
}

// CreateThread registers the thread for the given key if it does not exist
// yet. Idempotent; the slot order is taken from the key itself.
func (s *MessageStore) CreateThread(key string) error {
	a, b, err := SplitKey(key)
	if err != nil {
		return err
	}
	rec := storage.ThreadRecord{Key: key, UserA: a, UserB: b}
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return fmt.Errorf("create thread %s: %w", key, res.Error)
	}
	return nil
}

// CreatedAt returns the creation time of an existing thread.
func (s *MessageStore) CreatedAt(key string) (time.Time, error) {
	var rec storage.ThreadRecord
	if err := s.db.Where("key = ?", key).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, ErrThreadNotFound
		}
		return time.Time{}, fmt.Errorf("lookup thread %s: %w", key, err)
	}
	return rec.CreatedAt, nil
}

// Exists reports whether the thread has been created.
func (s *MessageStore) Exists(key string) (bool, error) {
	var n int64
	if err := s.db.Model(&storage.ThreadRecord{}).Where("key = ?", key).Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup thread %s: %w", key, err)
	}
	return n > 0, nil
}

// Append persists msg at the end of the thread's log and notifies all
// subscribers. The write is transactional: the message is either fully
// visible to every subscriber or not visible at all. Concurrent appends from
// both participants are serialized by the storage layer; their total order is
// (SentAt, Seq). Fails with ErrThreadNotFound for never-created threads and
// leaves msg.Seq set to the assigned sequence on success.
func (s *MessageStore) Append(key string, msg *Message) error {
	rec := storage.MessageRecord{
		ID:            msg.ID,
		ThreadKey:     key,
		SenderID:      msg.SenderID,
		TextA:         msg.TextA,
		TextB:         msg.TextB,
		MediaRef:      msg.MediaRef,
		SentAt:        msg.SentAt,
		TranslationOK: msg.TranslationOK,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&storage.ThreadRecord{}).Where("key = ?", key).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrThreadNotFound
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			return err
		}
		return fmt.Errorf("append to thread %s: %w", key, err)
	}
	msg.ThreadKey = key
	msg.Seq = rec.Seq

	if msgs, err := s.Messages(key); err == nil {
		s.subs.publish(key, msgs)
	}
	return nil
}

// Messages returns the thread's full log, oldest first, insertion order
// breaking timestamp ties.
func (s *MessageStore) Messages(key string) ([]Message, error) {
	var recs []storage.MessageRecord
	err := s.db.Where("thread_key = ?", key).
		Order("sent_at asc, seq asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", key, err)
	}
	msgs := make([]Message, 0, len(recs))
	for _, r := range recs {
		msgs = append(msgs, Message{
			ID:            r.ID,
			ThreadKey:     r.ThreadKey,
			SenderID:      r.SenderID,
			TextA:         r.TextA,
			TextB:         r.TextB,
			MediaRef:      r.MediaRef,
			SentAt:        r.SentAt,
			Seq:           r.Seq,
			TranslationOK: r.TranslationOK,
		})
	}
	return msgs, nil
}

// Subscribe delivers the current log immediately and again after every
// append until the subscription is cancelled.
func (s *MessageStore) Subscribe(key string, onChange func([]Message)) *Subscription {
	sub := s.subs.add(key, func(v any) { onChange(v.([]Message)) })
	if msgs, err := s.Messages(key); err == nil {
		onChange(msgs)
	}
	return sub
}
