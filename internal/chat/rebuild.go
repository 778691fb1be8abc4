package chat

import (
	"fmt"
	"log"
	"reflect"
	"sort"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"lingochat/internal/storage"
)

// Rebuilder reconstructs a user's inbox purely from the message log, read
// marks and profile snapshots. Nothing in an InboxEntry is authoritative;
// this is the proof.
type Rebuilder struct {
	db       *gorm.DB
	profiles ProfileSource
	bot      BotConfig
}

func NewRebuilder(db *gorm.DB, profiles ProfileSource, bot BotConfig) *Rebuilder {
	return &Rebuilder{db: db, profiles: profiles, bot: bot}
}

// Rebuild returns the owner's inbox as derived from the log: for every thread
// the owner participates in, the preview is the last message's text in the
// owner's slot, the timestamp is that message's, and unread counts the
// counterpart's messages past the owner's read mark. Bot threads never carry
// unread. Threads without messages keep a zeroed preview so freshly opened
// conversations still show up.
func (r *Rebuilder) Rebuild(ownerID string) ([]InboxEntry, error) {
	var threads []storage.ThreadRecord
	err := r.db.Where("user_a = ? OR user_b = ?", ownerID, ownerID).Find(&threads).Error
	if err != nil {
		return nil, fmt.Errorf("load threads for %s: %w", ownerID, err)
	}

	entries := make([]InboxEntry, 0, len(threads))
	for _, t := range threads {
		peerID := t.UserA
		if peerID == ownerID {
			peerID = t.UserB
		}
		// The bot owns no inbox; skip the human's thread when rebuilding
		// for the bot id itself.
		if ownerID == r.bot.ID {
			continue
		}

		entry := InboxEntry{
			ThreadKey:   t.Key,
			Counterpart: r.profileOf(peerID),
			LastUpdated: t.CreatedAt,
		}

		var last storage.MessageRecord
		err := r.db.Where("thread_key = ?", t.Key).
			Order("sent_at desc, seq desc").
			First(&last).Error
		switch err {
		case nil:
			msg := Message{ThreadKey: last.ThreadKey, TextA: last.TextA, TextB: last.TextB}
			entry.LastMessage = msg.TextFor(ownerID)
			entry.LastUpdated = last.SentAt
		case gorm.ErrRecordNotFound:
			// empty thread, keep bootstrap values
		default:
			return nil, fmt.Errorf("load last message of %s: %w", t.Key, err)
		}

		if peerID != r.bot.ID {
			var mark storage.ReadMarkRecord
			if err := r.db.Where("owner_id = ? AND thread_key = ?", ownerID, t.Key).
				First(&mark).Error; err != nil && err != gorm.ErrRecordNotFound {
				return nil, fmt.Errorf("load read mark %s/%s: %w", ownerID, t.Key, err)
			}
			var unread int64
			if err := r.db.Model(&storage.MessageRecord{}).
				Where("thread_key = ? AND sender_id = ? AND seq > ?", t.Key, peerID, mark.LastReadSeq).
				Count(&unread).Error; err != nil {
				return nil, fmt.Errorf("count unread %s/%s: %w", ownerID, t.Key, err)
			}
			entry.Unread = int(unread)
		}

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].LastUpdated.After(entries[j].LastUpdated) })
	return entries, nil
}

func (r *Rebuilder) profileOf(userID string) Profile {
	// The bot never appears in the user directory; its snapshot comes from
	// configuration, same as on the live send path.
	if userID == r.bot.ID {
		return Profile{ID: r.bot.ID, DisplayName: r.bot.DisplayName}
	}
	if r.profiles == nil {
		return Profile{ID: userID}
	}
	p, err := r.profiles.Profile(userID)
	if err != nil {
		return Profile{ID: userID}
	}
	return p
}

// userIDs lists every known user, the reconciler's work set.
func (r *Rebuilder) userIDs() ([]string, error) {
	var ids []string
	if err := r.db.Model(&storage.UserRecord{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

// Reconciler periodically checks every user's cached inbox against a rebuild
// from the log, logging drift and optionally repairing it in place.
type Reconciler struct {
	inbox     *InboxIndex
	rebuilder *Rebuilder
	repair    bool
	cron      *cron.Cron
}

func NewReconciler(inbox *InboxIndex, rebuilder *Rebuilder, repair bool) *Reconciler {
	return &Reconciler{inbox: inbox, rebuilder: rebuilder, repair: repair}
}

// Start schedules RunOnce with the given cron spec (e.g. "@every 10m").
func (rc *Reconciler) Start(spec string) error {
	rc.cron = cron.New()
	if _, err := rc.cron.AddFunc(spec, func() {
		if err := rc.RunOnce(); err != nil {
			log.Printf("inbox reconcile: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule reconciler: %w", err)
	}
	rc.cron.Start()
	return nil
}

func (rc *Reconciler) Stop() {
	if rc.cron != nil {
		rc.cron.Stop()
	}
}

// RunOnce reconciles every user and returns the first error encountered
// after finishing the sweep.
func (rc *Reconciler) RunOnce() error {
	ids, err := rc.rebuilder.userIDs()
	if err != nil {
		return err
	}
	var firstErr error
	for _, id := range ids {
		if err := rc.reconcileUser(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (rc *Reconciler) reconcileUser(ownerID string) error {
	rebuilt, err := rc.rebuilder.Rebuild(ownerID)
	if err != nil {
		return err
	}
	cached, err := rc.inbox.Snapshot(ownerID)
	if err != nil {
		return err
	}
	if inboxesEqual(cached, rebuilt) {
		return nil
	}
	log.Printf("inbox drift for %s: cached %d entries, rebuilt %d", ownerID, len(cached), len(rebuilt))
	if rc.repair {
		return rc.inbox.replaceAll(ownerID, rebuilt)
	}
	return nil
}

// inboxesEqual compares the log-derivable fields, ignoring the live Online
// flag which is not part of the log.
func inboxesEqual(a, b []InboxEntry) bool {
	if len(a) != len(b) {
		return false
	}
	norm := func(in []InboxEntry) []InboxEntry {
		out := make([]InboxEntry, len(in))
		copy(out, in)
		for i := range out {
			out[i].Counterpart.Online = false
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ThreadKey < out[j].ThreadKey })
		return out
	}
	return reflect.DeepEqual(norm(a), norm(b))
}
