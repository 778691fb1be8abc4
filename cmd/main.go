package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"lingochat/internal/chat"
	"lingochat/internal/config"
	"lingochat/internal/directory"
	"lingochat/internal/gateway"
	"lingochat/internal/handlers"
	"lingochat/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var presence directory.Presence
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		presence = directory.NewRedisPresence(rdb, 0)
		log.Printf("presence backed by redis at %s", cfg.RedisAddr)
	} else {
		presence = directory.NewMemoryPresence()
	}

	users := directory.NewUsers(db, presence)
	store := chat.NewMessageStore(db)
	inbox := chat.NewInboxIndex(db, presence)
	prefs := chat.NewLanguageDirectory(db)

	translator := gateway.NewDeepTranslateClient(cfg.TranslateAPIKey)
	translator.BaseURL = cfg.TranslateBaseURL
	translator.Host = cfg.TranslateHost

	replies := gateway.NewGeminiClient(cfg.GeminiAPIKey)
	replies.BaseURL = cfg.GeminiBaseURL
	replies.Model = cfg.GeminiModel

	uploader := gateway.NewMediaClient(cfg.MediaUploadURL, cfg.MediaPreset, cfg.MediaFolder)

	bot := chat.BotConfig{ID: cfg.BotID, DisplayName: cfg.BotName}
	orch := chat.NewOrchestrator(store, inbox, prefs, users, translator, replies, uploader, bot)

	rebuilder := chat.NewRebuilder(db, users, bot)
	reconciler := chat.NewReconciler(inbox, rebuilder, cfg.ReconcileRepair)
	if err := reconciler.Start(cfg.ReconcileSpec); err != nil {
		log.Fatalf("reconciler: %v", err)
	}
	defer reconciler.Stop()

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	api := &handlers.API{
		Users:    users,
		Orch:     orch,
		Inbox:    inbox,
		Store:    store,
		Prefs:    prefs,
		Presence: presence,
	}
	api.Register(app)

	log.Printf("listening on %s", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
