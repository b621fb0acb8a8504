package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/config"
	"github.com/set-night/wondercam/internal/domain"
	"github.com/set-night/wondercam/internal/middleware"
	tg "github.com/set-night/wondercam/internal/telegram"
)

func (h *Handler) handleLang(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID
	current := h.sessionLanguage(h.registry.GetOrCreate(chatID), user)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        "🌐 Choose the language I should answer in:",
		ReplyMarkup: tg.LanguageKeyboard(h.cfg.SupportedLanguages, current),
	})
}

func (h *Handler) handleLangSelect(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	msg := cq.Message.Message

	lang, err := tg.ParseLanguageCallback(cq.Data)
	if err != nil || !h.cfg.IsSupportedLanguage(lang) {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: cq.ID,
			Text:            "Unsupported language",
		})
		return
	}

	if err := h.userService.SetLanguage(ctx, user.ID, lang); err != nil {
		slog.Error("save language", "error", err, "user_id", user.ID)
	}

	chat := h.registry.GetOrCreate(msg.Chat.ID)
	if err := chat.Machine.SetLanguage(lang); err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
		slog.Error("set session language", "error", err, "chat_id", msg.Chat.ID)
	}

	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            "✅ " + config.LanguageNames[lang],
	})
	b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        fmt.Sprintf("🌐 I'll answer in %s.", config.LanguageNames[lang]),
		ReplyMarkup: tg.LanguageKeyboard(h.cfg.SupportedLanguages, lang),
	})
}
