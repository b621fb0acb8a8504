package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/middleware"
	"github.com/set-night/wondercam/internal/service"
)

const historyLimit = 5

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != "private" {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	welcomeText := fmt.Sprintf(
		"👋 Hi, *%s*!\n\n"+
			"I'm WonderCam. Send me a photo and ask anything about it, "+
			"or just describe an image and I'll draw it.\n\n"+
			"📋 *Commands:*\n"+
			"/new — Start a new chat without a photo\n"+
			"/lang — Reply language\n"+
			"/balance — Your credits\n\n"+
			"💡 Reply to a photo or a generated image to talk about that picture.\n"+
			"💰 Each answer costs %s credits. Balance: *%s*",
		user.FirstName,
		service.FormatCredits(h.turnCost),
		service.FormatCredits(user.Balance),
	)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      welcomeText,
		ParseMode: models.ParseModeMarkdownV1,
	})
}

func (h *Handler) handleBalance(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	balance, err := h.billingService.Balance(ctx, user.ID)
	if err != nil {
		slog.Error("get balance", "error", err, "user_id", user.ID)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "❌ Could not load your balance.",
		})
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 Balance: *%s* credits\n", service.FormatCredits(balance))
	fmt.Fprintf(&sb, "Each answer costs %s.\n", service.FormatCredits(h.turnCost))

	history, err := h.billingService.History(ctx, user.ID, historyLimit)
	if err != nil {
		slog.Warn("get transaction history", "error", err, "user_id", user.ID)
	}
	if len(history) > 0 {
		sb.WriteString("\n🧾 *Recent:*\n")
		for _, tx := range history {
			fmt.Fprintf(&sb, "`%s` %s %s — %s\n",
				tx.CreatedAt.Format("02.01 15:04"),
				tx.TxType.Sign(),
				service.FormatCredits(tx.Amount.Abs()),
				tx.Description,
			)
		}
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      sb.String(),
		ParseMode: models.ParseModeMarkdownV1,
	})
}
