package handlers

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"lingochat/internal/chat"
	"lingochat/internal/directory"
)

// presenceRefreshInterval must stay well below the redis presence TTL, or
// keys expire under open connections.
const presenceRefreshInterval = 30 * time.Second

// API wires the chat core to the HTTP surface.
type API struct {
	Users    *directory.Users
	Orch     *chat.Orchestrator
	Inbox    *chat.InboxIndex
	Store    *chat.MessageStore
	Prefs    *chat.LanguageDirectory
	Presence directory.Presence
}

// Register mounts all routes on the app.
func (a *API) Register(app *fiber.App) {
	app.Post("/api/users", a.RegisterUser)
	app.Get("/api/users/search", a.SearchUsers) // ?q=&exclude=
	app.Put("/api/users/:uid/language", a.SetLanguage)
	app.Put("/api/users/:uid/theme", a.SetTheme)

	app.Post("/api/threads", a.OpenThread)
	app.Post("/api/threads/:key/read", a.MarkRead) // ?uid=
	app.Post("/api/threads/:key/messages", a.SendMessage)
	app.Get("/api/threads/:key/messages", a.GetMessages)
	app.Get("/api/inbox/:uid", a.GetInbox)

	app.Get("/api/ws/threads/:key", websocket.New(a.ThreadStream))
	app.Get("/api/ws/inbox/:uid", websocket.New(a.InboxStream))
	app.Get("/api/ws/users/:uid/language", websocket.New(a.LanguageStream))
}

// RegisterUser POST /api/users
func (a *API) RegisterUser(c *fiber.Ctx) error {
	var body struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
		PhotoURL    string `json:"photo_url"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if strings.TrimSpace(body.ID) == "" || strings.TrimSpace(body.DisplayName) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing id or display_name"})
	}
	err := a.Users.Register(directory.NewUser{
		ID:          body.ID,
		DisplayName: body.DisplayName,
		Email:       body.Email,
		PhotoURL:    body.PhotoURL,
	})
	if errors.Is(err, directory.ErrUserExists) {
		return c.SendStatus(fiber.StatusConflict)
	}
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// SearchUsers GET /api/users/search?q=&exclude=
func (a *API) SearchUsers(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	exclude := c.Query("exclude")
	users, err := a.Users.SearchByName(q, exclude)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if users == nil {
		users = []chat.Profile{}
	}
	return c.JSON(users)
}

// SetLanguage PUT /api/users/:uid/language
func (a *API) SetLanguage(c *fiber.Ctx) error {
	uid := c.Params("uid")
	var body struct {
		Language string `json:"language"`
	}
	if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.Language) == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	err := a.Prefs.Set(uid, body.Language)
	if errors.Is(err, chat.ErrUnknownUser) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetTheme PUT /api/users/:uid/theme
func (a *API) SetTheme(c *fiber.Ctx) error {
	uid := c.Params("uid")
	var body struct {
		Theme string `json:"theme"`
	}
	if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.Theme) == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	err := a.Users.SetTheme(uid, body.Theme)
	if errors.Is(err, directory.ErrUserNotFound) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// OpenThread POST /api/threads
func (a *API) OpenThread(c *fiber.Ctx) error {
	var body struct {
		Self  string `json:"self"`
		Other string `json:"other"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if body.Self == "" || body.Other == "" || body.Self == body.Other {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "need two distinct participants"})
	}
	key, err := a.Orch.OpenThread(body.Self, body.Other)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(fiber.Map{"thread_key": key})
}

// MarkRead POST /api/threads/:key/read?uid=
func (a *API) MarkRead(c *fiber.Ctx) error {
	key := c.Params("key")
	uid := c.Query("uid")
	if uid == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if err := a.Inbox.ResetUnread(uid, key); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SendMessage POST /api/threads/:key/messages
func (a *API) SendMessage(c *fiber.Ctx) error {
	key := c.Params("key")
	var body struct {
		Sender    string `json:"sender"`
		Text      string `json:"text"`
		MediaName string `json:"media_name,omitempty"`
		MediaData []byte `json:"media_data,omitempty"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if body.Sender == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing sender"})
	}
	var media *chat.Media
	if len(body.MediaData) > 0 {
		media = &chat.Media{Name: body.MediaName, Data: body.MediaData}
	}

	result, err := a.Orch.Send(c.Context(), body.Sender, key, body.Text, media)
	switch {
	case errors.Is(err, chat.ErrThreadNotFound):
		return c.SendStatus(fiber.StatusNotFound)
	case errors.Is(err, chat.ErrNotParticipant):
		return c.SendStatus(fiber.StatusForbidden)
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrBadThreadKey):
		return c.SendStatus(fiber.StatusBadRequest)
	case err != nil:
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	resp := fiber.Map{"message": result.Message}
	if result.Reply != nil {
		resp["reply"] = result.Reply
	}
	if result.MediaErr != nil {
		resp["media_error"] = result.MediaErr.Error()
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetMessages GET /api/threads/:key/messages
func (a *API) GetMessages(c *fiber.Ctx) error {
	key := c.Params("key")
	exists, err := a.Store.Exists(key)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if !exists {
		return c.SendStatus(fiber.StatusNotFound)
	}
	msgs, err := a.Store.Messages(key)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(msgs)
}

// GetInbox GET /api/inbox/:uid
func (a *API) GetInbox(c *fiber.Ctx) error {
	uid := c.Params("uid")
	list, err := a.Inbox.Snapshot(uid)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if list == nil {
		list = []chat.InboxEntry{}
	}
	return c.JSON(list)
}

// ThreadStream GET /api/ws/threads/:key
// Streams the full ordered message list on every change. Closing the socket
// cancels only this subscription; the account-level inbox stream lives on.
func (a *API) ThreadStream(c *websocket.Conn) {
	key := c.Params("key")
	client := newStreamClient(c)
	go client.writePump()

	sub := a.Store.Subscribe(key, func(msgs []chat.Message) {
		if data, err := json.Marshal(msgs); err == nil {
			client.push(data)
		}
	})
	defer func() {
		sub.Cancel()
		client.close()
	}()

	client.waitClosed()
}

// InboxStream GET /api/ws/inbox/:uid
// The account-level stream; it also drives presence for the user.
func (a *API) InboxStream(c *websocket.Conn) {
	uid := c.Params("uid")
	client := newStreamClient(c)
	go client.writePump()

	if a.Presence != nil {
		a.Presence.SetOnline(uid)
		stop := refreshPresence(a.Presence, uid, presenceRefreshInterval)
		defer stop()
	}
	sub := a.Inbox.Subscribe(uid, func(list []chat.InboxEntry) {
		if data, err := json.Marshal(list); err == nil {
			client.push(data)
		}
	})
	defer func() {
		sub.Cancel()
		client.close()
		if a.Presence != nil {
			a.Presence.SetOffline(uid)
		}
	}()

	client.waitClosed()
}

// refreshPresence keeps the user's presence entry alive while their stream
// is open. The returned stop function ends the refresh loop.
func refreshPresence(p directory.Presence, uid string, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Refresh(uid)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// LanguageStream GET /api/ws/users/:uid/language
// Lets a composing counterpart track this user's language without re-reads.
func (a *API) LanguageStream(c *websocket.Conn) {
	uid := c.Params("uid")
	client := newStreamClient(c)
	go client.writePump()

	sub := a.Prefs.Subscribe(uid, func(code string) {
		if data, err := json.Marshal(fiber.Map{"language": code}); err == nil {
			client.push(data)
		}
	})
	defer func() {
		sub.Cancel()
		client.close()
	}()

	client.waitClosed()
}
