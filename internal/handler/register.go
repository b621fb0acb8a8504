package handler

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	tg "github.com/set-night/wondercam/internal/telegram"
)

// Register registers all command and callback handlers on the bot instance.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/new", bot.MatchTypePrefix, h.handleNew)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/lang", bot.MatchTypePrefix, h.handleLang)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/balance", bot.MatchTypePrefix, h.handleBalance)

	// Admin
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/grant", bot.MatchTypePrefix, h.handleGrant)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stat", bot.MatchTypePrefix, h.handleStat)

	// Language picker
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, tg.LanguageCallbackPrefix, bot.MatchTypePrefix, h.handleLangSelect)

	// The empty prefix matches every message, photos included
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, h.HandleDefault)
}

// HandleDefault routes messages no command matched: photos start a
// session, other text is a turn.
func (h *Handler) HandleDefault(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	switch {
	case msg == nil:
		return
	case len(msg.Photo) > 0:
		h.HandlePhoto(ctx, b, update)
	case msg.Text == "" || strings.HasPrefix(msg.Text, "/"):
		return
	default:
		h.HandleText(ctx, b, update)
	}
}
