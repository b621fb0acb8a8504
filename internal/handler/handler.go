package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/set-night/wondercam/internal/config"
	"github.com/set-night/wondercam/internal/domain"
	"github.com/set-night/wondercam/internal/service"
	"github.com/set-night/wondercam/internal/telegram"
	"github.com/shopspring/decimal"
)

// Ledger is the credit ledger handlers charge turns to and report from.
type Ledger interface {
	Charge(ctx context.Context, userID int64, amount decimal.Decimal, description string) (decimal.Decimal, error)
	Credit(ctx context.Context, userID int64, amount decimal.Decimal, description string) (decimal.Decimal, error)
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
	History(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error)
}

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot            *bot.Bot
	cfg            *config.Config
	userService    *service.UserService
	billingService Ledger
	registry       *service.SessionRegistry
	tgLogger       *telegram.TelegramLogger
	turnCost       decimal.Decimal
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot            *bot.Bot
	Cfg            *config.Config
	UserService    *service.UserService
	BillingService Ledger
	Registry       *service.SessionRegistry
	TgLogger       *telegram.TelegramLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:            deps.Bot,
		cfg:            deps.Cfg,
		userService:    deps.UserService,
		billingService: deps.BillingService,
		registry:       deps.Registry,
		tgLogger:       deps.TgLogger,
		turnCost:       service.CreditsFromFloat(deps.Cfg.CreditsPerTurn),
	}
}
