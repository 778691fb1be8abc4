package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyMessage = errors.New("message has no text and no media")

// Translator converts text between two language codes. Callers skip the call
// entirely when source and target match; a failure is binary, never a
// truncated or partial result.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// ReplyGenerator produces the chatbot's answer to a user message.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, prompt, text string) (string, error)
}

// MediaUploader stores a binary attachment and returns a stable reference URI.
type MediaUploader interface {
	Upload(ctx context.Context, name string, blob []byte) (string, error)
}

// ProfileSource supplies point-in-time profile snapshots, typically backed by
// the user directory.
type ProfileSource interface {
	Profile(userID string) (Profile, error)
}

// Media is an attachment handed to Send before upload.
type Media struct {
	Name string
	Data []byte
}

// SendResult reports one completed send. Reply is set on the chatbot path
// when a generated answer was appended. MediaErr carries a failed attachment
// upload; the message itself was still delivered without it.
type SendResult struct {
	Message  Message
	Reply    *Message
	MediaErr error
}

// BotConfig identifies the reserved chatbot participant. The id is reserved
// and well known; no language preference is ever looked up for it and it
// always receives the author's raw text.
type BotConfig struct {
	ID          string
	DisplayName string
}

// Orchestrator composes the stores and gateways into the send protocol and
// thread bootstrap. One instance serves all sessions; sends from distinct
// participants into the same thread are independent and may interleave.
type Orchestrator struct {
	store    *MessageStore
	inbox    *InboxIndex
	prefs    *LanguageDirectory
	profiles ProfileSource

	translator Translator
	replies    ReplyGenerator
	uploader   MediaUploader

	bot BotConfig
}

func NewOrchestrator(
	store *MessageStore,
	inbox *InboxIndex,
	prefs *LanguageDirectory,
	profiles ProfileSource,
	translator Translator,
	replies ReplyGenerator,
	uploader MediaUploader,
	bot BotConfig,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		inbox:      inbox,
		prefs:      prefs,
		profiles:   profiles,
		translator: translator,
		replies:    replies,
		uploader:   uploader,
		bot:        bot,
	}
}

// kindOf classifies the recipient of a send.
func (o *Orchestrator) kindOf(recipientID string) RecipientKind {
	if recipientID == o.bot.ID {
		return BotRecipient
	}
	return HumanRecipient
}

// OpenThread derives the canonical key for (selfID, otherID), creates the
// message log if it never existed, seeds both participants' inbox entries
// with counterpart snapshots, and marks the thread read for the opener.
// Opening an already existing thread only resets the opener's unread count.
func (o *Orchestrator) OpenThread(selfID, otherID string) (string, error) {
	key := DeriveKey(selfID, otherID)
	existed, err := o.store.Exists(key)
	if err != nil {
		return "", err
	}
	if !existed {
		if err := o.store.CreateThread(key); err != nil {
			return "", err
		}
		// Seed timestamps from the thread record itself so a rebuild of an
		// empty thread lands on the same LastUpdated.
		now, err := o.store.CreatedAt(key)
		if err != nil {
			now = time.Now()
		}
		self := o.profileOf(selfID)
		other := o.profileOf(otherID)
		if err := o.inbox.Upsert(selfID, key, EntryPatch{Counterpart: &other, LastUpdated: &now}); err != nil {
			return "", err
		}
		// The bot has no inbox of its own; its thread is indexed only for
		// the human participant.
		if o.kindOf(otherID) == HumanRecipient {
			if err := o.inbox.Upsert(otherID, key, EntryPatch{Counterpart: &self, LastUpdated: &now}); err != nil {
				return "", err
			}
		}
	}
	if err := o.inbox.ResetUnread(selfID, key); err != nil {
		return "", err
	}
	return key, nil
}

// Send runs the full protocol for one message: resolve the recipient, branch
// on recipient kind, translate (or degrade), upload media (or degrade),
// append to the log, then update both inbox entries. Only a failed append is
// fatal; translation and media failures deliver a degraded message, and
// inbox failures are logged because the inbox is rebuildable from the log.
func (o *Orchestrator) Send(ctx context.Context, senderID, key, text string, media *Media) (*SendResult, error) {
	recipientID, err := Counterpart(key, senderID)
	if err != nil {
		return nil, err
	}
	if text == "" && media == nil {
		return nil, ErrEmptyMessage
	}

	if o.kindOf(recipientID) == BotRecipient {
		return o.sendToBot(ctx, senderID, key, text)
	}
	return o.sendToHuman(ctx, senderID, recipientID, key, text, media)
}

// sendToBot appends the author's message verbatim to both slots, then asks
// the reply generator for an answer and appends it as a second, bot-authored
// message. Languages are never consulted: the bot receives raw input and the
// prompt pins the reply language instead. A generation failure leaves the
// user's own message in place and appends nothing.
func (o *Orchestrator) sendToBot(ctx context.Context, senderID, key, text string) (*SendResult, error) {
	msg := Message{
		ID:            uuid.NewString(),
		SenderID:      senderID,
		TextA:         text,
		TextB:         text,
		SentAt:        time.Now(),
		TranslationOK: true,
	}
	if err := o.store.Append(key, &msg); err != nil {
		return nil, err
	}
	result := &SendResult{Message: msg}

	senderLang, err := o.prefs.Get(senderID)
	if err != nil {
		senderLang = DefaultLanguage
	}
	prompt := fmt.Sprintf(
		"You are a helpful assistant. Always reply in %s no matter the input language.",
		languageName(senderLang),
	)
	reply, err := o.replies.GenerateReply(ctx, prompt, text)
	if err != nil {
		log.Printf("reply generation failed for %s: %v", key, err)
		return result, nil
	}

	botMsg := Message{
		ID:            uuid.NewString(),
		SenderID:      o.bot.ID,
		TextA:         reply,
		TextB:         reply,
		SentAt:        time.Now(),
		TranslationOK: true,
	}
	if err := o.store.Append(key, &botMsg); err != nil {
		log.Printf("append bot reply failed for %s: %v", key, err)
		return result, nil
	}
	result.Reply = &botMsg

	// The bot thread has one conceptual participant for indexing: only the
	// sender's entry is touched, and its preview shows the reply.
	now := botMsg.SentAt
	bot := Profile{ID: o.bot.ID, DisplayName: o.bot.DisplayName}
	if err := o.inbox.Upsert(senderID, key, EntryPatch{Counterpart: &bot, LastMessage: &reply, LastUpdated: &now}); err != nil {
		log.Printf("inbox update failed for %s/%s: %v", senderID, key, err)
	}
	return result, nil
}

func (o *Orchestrator) sendToHuman(ctx context.Context, senderID, recipientID, key, text string, media *Media) (*SendResult, error) {
	senderLang, err := o.prefs.Get(senderID)
	if err != nil {
		return nil, err
	}
	recipientLang, err := o.prefs.Get(recipientID)
	if err != nil {
		return nil, err
	}

	translated := text
	translationOK := true
	if senderLang != recipientLang && text != "" {
		out, err := o.translator.Translate(ctx, text, senderLang, recipientLang)
		if err != nil {
			// Degraded delivery: the recipient sees the untranslated
			// original, flagged, rather than nothing.
			log.Printf("translation %s->%s failed for %s: %v", senderLang, recipientLang, key, err)
			translationOK = false
		} else {
			translated = out
		}
	}

	var mediaRef string
	var mediaErr error
	if media != nil {
		mediaRef, mediaErr = o.uploader.Upload(ctx, media.Name, media.Data)
		if mediaErr != nil {
			// Upload failure never blocks text delivery.
			log.Printf("media upload failed for %s: %v", key, mediaErr)
			mediaRef = ""
		}
	}

	a, _, err := SplitKey(key)
	if err != nil {
		return nil, err
	}
	msg := Message{
		ID:            uuid.NewString(),
		SenderID:      senderID,
		MediaRef:      mediaRef,
		SentAt:        time.Now(),
		TranslationOK: translationOK,
	}
	// Slot assignment is fixed at thread creation: the author's raw input
	// lands in their own slot, the delivered text in the counterpart's.
	if senderID == a {
		msg.TextA, msg.TextB = text, translated
	} else {
		msg.TextA, msg.TextB = translated, text
	}

	if err := o.store.Append(key, &msg); err != nil {
		return nil, err
	}

	// Independent, order-insensitive derived-cache writes. The log above is
	// the durability boundary; failures here are reported, never rolled back.
	now := msg.SentAt
	senderProfile := o.profileOf(senderID)
	recipientProfile := o.profileOf(recipientID)
	if err := o.inbox.Upsert(senderID, key, EntryPatch{Counterpart: &recipientProfile, LastMessage: &text, LastUpdated: &now}); err != nil {
		log.Printf("inbox update failed for %s/%s: %v", senderID, key, err)
	}
	if err := o.inbox.Upsert(recipientID, key, EntryPatch{Counterpart: &senderProfile, LastMessage: &translated, LastUpdated: &now}); err != nil {
		log.Printf("inbox update failed for %s/%s: %v", recipientID, key, err)
	} else if err := o.inbox.IncrementUnread(recipientID, key); err != nil {
		log.Printf("unread increment failed for %s/%s: %v", recipientID, key, err)
	}

	return &SendResult{Message: msg, MediaErr: mediaErr}, nil
}

func (o *Orchestrator) profileOf(userID string) Profile {
	if userID == o.bot.ID {
		return Profile{ID: o.bot.ID, DisplayName: o.bot.DisplayName}
	}
	p, err := o.profiles.Profile(userID)
	if err != nil {
		return Profile{ID: userID}
	}
	return p
}

// languageName maps the codes the selector offers to the names the reply
// prompt uses; unknown codes pass through unchanged.
func languageName(code string) string {
	switch code {
	case "en":
		return "English"
	case "hi":
		return "Hindi"
	case "mr":
		return "Marathi"
	case "zh-Hans":
		return "Chinese"
	}
	return code
}
