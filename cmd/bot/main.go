package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	wondercam "github.com/set-night/wondercam"
	"github.com/set-night/wondercam/internal/config"
	"github.com/set-night/wondercam/internal/handler"
	"github.com/set-night/wondercam/internal/middleware"
	"github.com/set-night/wondercam/internal/repository"
	"github.com/set-night/wondercam/internal/service"
	"github.com/set-night/wondercam/internal/telegram"
)

func main() {
	// Setup structured logging
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(wondercam.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize services
	userService := service.NewUserService(pool, service.CreditsFromFloat(cfg.WelcomeCredits), cfg.DefaultLanguage)
	billingService := service.NewBillingService(pool)
	wonderCam := service.NewWonderCamService(cfg.APIURL, cfg.APIToken, cfg.Model)
	registry := service.NewSessionRegistry(func() service.Assistant {
		return wonderCam.NewConversation()
	})
	defer registry.Shutdown()

	// Handler and logger pointers for use in closures created before the bot exists
	var (
		h        *handler.Handler
		tgLogger *telegram.TelegramLogger
	)

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(errorReporter(func() *telegram.TelegramLogger { return tgLogger })),
			middleware.Logging(),
			middleware.RateLimit(middleware.NewChatLimiter(config.RateLimitWindow, config.RateLimitTurns)),
			middleware.UserLoader(userService, cfg, registrationNotifier(func() *telegram.TelegramLogger { return tgLogger })),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.HandleDefault(ctx, b, update)
		}),
	}
	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	// Initialize telegram logger
	tgLogger = telegram.NewTelegramLogger(b, cfg)

	// Initialize handler
	h = handler.New(handler.Deps{
		Bot:            b,
		Cfg:            cfg,
		UserService:    userService,
		BillingService: billingService,
		Registry:       registry,
		TgLogger:       tgLogger,
	})

	// Register all handlers
	h.Register()

	// Start bot
	slog.Info("starting bot",
		"username", me.Username,
		"id", me.ID,
		"api_url", cfg.APIURL,
		"model", cfg.Model,
	)
	b.Start(ctx)

	// Graceful shutdown
	slog.Info("bot stopped gracefully", "active_chats", registry.Count())
}

// errorReporter defers to the Telegram logger once it exists.
type errorReporter func() *telegram.TelegramLogger

func (r errorReporter) LogError(err error, context string) {
	r().LogError(err, context)
}

type registrationNotifier func() *telegram.TelegramLogger

func (n registrationNotifier) LogRegistration(telegramID int64, name, username string) {
	n().LogRegistration(telegramID, name, username)
}
