package chat

import (
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lingochat/internal/storage"
)

// Presence answers whether a user currently holds a live connection.
type Presence interface {
	IsOnline(userID string) bool
}

// InboxIndex maintains each user's thread summaries: counterpart snapshot,
// last-message preview, timestamp and unread count. It is a derived cache
// over the message log, partitioned per owner, and safe to rebuild at any
// time (see Rebuilder).
type InboxIndex struct {
	db       *gorm.DB
	presence Presence
	subs     *fanout
}

func NewInboxIndex(db *gorm.DB, presence Presence) *InboxIndex {
	return &InboxIndex{db: db, presence: presence, subs: newFanout()}
}

// Upsert merges patch into the owner's entry for the thread, creating the
// entry if absent, and notifies the owner's subscribers.
func (x *InboxIndex) Upsert(ownerID, key string, patch EntryPatch) error {
	err := x.db.Transaction(func(tx *gorm.DB) error {
		rec := storage.InboxRecord{OwnerID: ownerID, ThreadKey: key}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ? AND thread_key = ?", ownerID, key).First(&rec).Error; err != nil {
			return err
		}
		if patch.Counterpart != nil {
			rec.PeerID = patch.Counterpart.ID
			rec.PeerName = patch.Counterpart.DisplayName
			rec.PeerPhoto = patch.Counterpart.PhotoURL
		}
		if patch.LastMessage != nil {
			rec.LastMessage = *patch.LastMessage
		}
		if patch.LastUpdated != nil {
			rec.LastUpdated = *patch.LastUpdated
		}
		return tx.Save(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("upsert inbox %s/%s: %w", ownerID, key, err)
	}
	x.notify(ownerID)
	return nil
}

// IncrementUnread bumps the unread counter on the owner's entry. Called for
// the recipient of a send only, never for its author.
func (x *InboxIndex) IncrementUnread(ownerID, key string) error {
	res := x.db.Model(&storage.InboxRecord{}).
		Where("owner_id = ? AND thread_key = ?", ownerID, key).
		UpdateColumn("unread", gorm.Expr("unread + 1"))
	if res.Error != nil {
		return fmt.Errorf("increment unread %s/%s: %w", ownerID, key, res.Error)
	}
	x.notify(ownerID)
	return nil
}

// ResetUnread zeroes the owner's unread counter for the thread and advances
// the owner's read mark to the end of the log, so a rebuild recomputes the
// same zero.
func (x *InboxIndex) ResetUnread(ownerID, key string) error {
	err := x.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&storage.InboxRecord{}).
			Where("owner_id = ? AND thread_key = ?", ownerID, key).
			UpdateColumn("unread", 0).Error; err != nil {
			return err
		}
		var last struct{ Seq uint64 }
		tx.Model(&storage.MessageRecord{}).
			Select("COALESCE(MAX(seq), 0) AS seq").
			Where("thread_key = ?", key).
			Scan(&last)
		mark := storage.ReadMarkRecord{OwnerID: ownerID, ThreadKey: key, LastReadSeq: last.Seq}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "thread_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_read_seq"}),
		}).Create(&mark).Error
	})
	if err != nil {
		return fmt.Errorf("reset unread %s/%s: %w", ownerID, key, err)
	}
	x.notify(ownerID)
	return nil
}

// Snapshot returns the owner's entries sorted by LastUpdated descending, the
// order the thread list displays them in. Online flags are read from presence
// at snapshot time.
func (x *InboxIndex) Snapshot(ownerID string) ([]InboxEntry, error) {
	var recs []storage.InboxRecord
	if err := x.db.Where("owner_id = ?", ownerID).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load inbox %s: %w", ownerID, err)
	}
	list := make([]InboxEntry, 0, len(recs))
	for _, r := range recs {
		online := false
		if x.presence != nil {
			online = x.presence.IsOnline(r.PeerID)
		}
		list = append(list, InboxEntry{
			ThreadKey: r.ThreadKey,
			Counterpart: Profile{
				ID:          r.PeerID,
				DisplayName: r.PeerName,
				PhotoURL:    r.PeerPhoto,
				Online:      online,
			},
			LastMessage: r.LastMessage,
			LastUpdated: r.LastUpdated,
			Unread:      r.Unread,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].LastUpdated.After(list[j].LastUpdated) })
	return list, nil
}

// Subscribe delivers the owner's current inbox immediately and again after
// every change until cancelled. The subscription lives at the account level,
// independent of any open thread view.
func (x *InboxIndex) Subscribe(ownerID string, onChange func([]InboxEntry)) *Subscription {
	sub := x.subs.add(ownerID, func(v any) { onChange(v.([]InboxEntry)) })
	if list, err := x.Snapshot(ownerID); err == nil {
		onChange(list)
	}
	return sub
}

// replaceAll overwrites the owner's persisted entries with rebuilt ones.
// Used by the reconciler when repairing drift.
func (x *InboxIndex) replaceAll(ownerID string, entries []InboxEntry) error {
	err := x.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Delete(&storage.InboxRecord{}).Error; err != nil {
			return err
		}
		for _, e := range entries {
			rec := storage.InboxRecord{
				OwnerID:     ownerID,
				ThreadKey:   e.ThreadKey,
				PeerID:      e.Counterpart.ID,
				PeerName:    e.Counterpart.DisplayName,
				PeerPhoto:   e.Counterpart.PhotoURL,
				LastMessage: e.LastMessage,
				LastUpdated: e.LastUpdated,
				Unread:      e.Unread,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace inbox %s: %w", ownerID, err)
	}
	x.notify(ownerID)
	return nil
}

func (x *InboxIndex) notify(ownerID string) {
	if list, err := x.Snapshot(ownerID); err == nil {
		x.subs.publish(ownerID, list)
	}
}
