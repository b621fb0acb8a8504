package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/domain"
	"github.com/set-night/wondercam/internal/middleware"
	"github.com/set-night/wondercam/internal/service"
	"github.com/shopspring/decimal"
)

// parseGrant parses "/grant <telegram_id> <amount>".
func parseGrant(text string) (int64, decimal.Decimal, error) {
	parts := strings.Fields(text)
	if len(parts) != 3 {
		return 0, decimal.Zero, errors.New("usage: /grant <telegram_id> <amount>")
	}
	telegramID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("invalid telegram id %q", parts[1])
	}
	amount, err := decimal.NewFromString(parts[2])
	if err != nil || !amount.IsPositive() {
		return 0, decimal.Zero, fmt.Errorf("invalid amount %q", parts[2])
	}
	return telegramID, amount.Round(4), nil
}

func (h *Handler) handleGrant(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	admin := middleware.GetUser(ctx)
	if admin == nil || !admin.IsAdmin {
		return
	}

	chatID := update.Message.Chat.ID
	reply := func(text string) {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	}

	telegramID, amount, err := parseGrant(update.Message.Text)
	if err != nil {
		reply("❌ " + err.Error())
		return
	}

	target, err := h.userService.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, domain.ErrUserNotFound) {
		reply("❌ User not found.")
		return
	}
	if err != nil {
		slog.Error("load grant target", "error", err, "telegram_id", telegramID)
		reply("❌ Could not load the user.")
		return
	}

	balance, err := h.billingService.Credit(ctx, target.ID, amount, fmt.Sprintf("granted by %d", admin.TelegramID))
	if err != nil {
		slog.Error("grant credits", "error", err, "user_id", target.ID)
		reply("❌ Could not grant credits.")
		return
	}

	slog.Info("credits granted", "admin", admin.TelegramID, "user_id", target.ID, "amount", amount.String())
	reply(fmt.Sprintf("✅ Granted %s credits to %d. New balance: %s",
		service.FormatCredits(amount), telegramID, service.FormatCredits(balance)))
}

func (h *Handler) handleStat(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil || !user.IsAdmin {
		return
	}

	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	total, today, err := h.userService.Count(ctx, todayStart)
	if err != nil {
		slog.Error("count users", "error", err)
	}

	text := fmt.Sprintf(
		"📊 *Stats*\n\n"+
			"👥 *Users:*\n"+
			"Total: %d\n"+
			"Today: %d\n\n"+
			"💬 Active chats: %d",
		total,
		today,
		h.registry.Count(),
	)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		ParseMode: models.ParseModeMarkdownV1,
	})
}
