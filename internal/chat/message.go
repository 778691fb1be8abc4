package chat

import "time"

// Message is one entry in a thread's append-only bilingual log. TextA belongs
// to the participant in slot A of the thread key, TextB to slot B. Exactly one
// of the two is the author's raw input; the other is its translation, or a
// verbatim copy when translation failed (TranslationOK == false). Messages are
// never mutated after being appended.
type Message struct {
	ID            string    `json:"id"`
	ThreadKey     string    `json:"thread_key"`
	SenderID      string    `json:"sender_id"`
	TextA         string    `json:"text_a"`
	TextB         string    `json:"text_b"`
	MediaRef      string    `json:"media_ref,omitempty"`
	SentAt        time.Time `json:"sent_at"`
	Seq           uint64    `json:"seq"`
	TranslationOK bool      `json:"translation_ok"`
}

// TextFor returns the text slot addressed to the given participant.
func (m Message) TextFor(userID string) string {
	a, _, err := SplitKey(m.ThreadKey)
	if err == nil && userID == a {
		return m.TextA
	}
	return m.TextB
}

// Profile is a point-in-time snapshot of a counterpart shown in the inbox.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Online      bool   `json:"online"`
}

// InboxEntry is one owner's cached view of a thread: who the counterpart is,
// what was said last (in the owner's own language), and how much of it the
// owner has not read yet.
type InboxEntry struct {
	ThreadKey   string    `json:"thread_key"`
	Counterpart Profile   `json:"counterpart"`
	LastMessage string    `json:"last_message"`
	LastUpdated time.Time `json:"last_updated"`
	Unread      int       `json:"unread"`
}

// EntryPatch is a partial inbox update; nil fields are left untouched.
type EntryPatch struct {
	Counterpart *Profile
	LastMessage *string
	LastUpdated *time.Time
}

// RecipientKind distinguishes the two send paths: a human counterpart whose
// language drives translation, or the configured chatbot which receives raw
// text and answers with a generated reply.
type RecipientKind int

const (
	HumanRecipient RecipientKind = iota
	BotRecipient
)
