package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Turns stream for a long time; anything slower than this is logged at info.
const slowUpdate = 30 * time.Second

type updateInfo struct {
	kind   string
	chatID int64
	userID int64
}

func describeUpdate(update *models.Update) updateInfo {
	switch {
	case update.Message != nil:
		msg := update.Message
		info := updateInfo{kind: "text", chatID: msg.Chat.ID}
		if msg.From != nil {
			info.userID = msg.From.ID
		}
		switch {
		case len(msg.Photo) > 0:
			info.kind = "photo"
		case strings.HasPrefix(msg.Text, "/"):
			info.kind = "command"
		case msg.ReplyToMessage != nil:
			info.kind = "reply"
		case msg.Text == "":
			info.kind = "other"
		}
		return info
	case update.CallbackQuery != nil:
		info := updateInfo{kind: "callback", userID: update.CallbackQuery.From.ID}
		if update.CallbackQuery.Message.Message != nil {
			info.chatID = update.CallbackQuery.Message.Message.Chat.ID
		}
		return info
	}
	return updateInfo{kind: "unknown"}
}

// Logging returns middleware that logs how each update was handled.
func Logging() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			start := time.Now()
			info := describeUpdate(update)

			next(ctx, b, update)

			elapsed := time.Since(start)
			level := slog.LevelDebug
			if elapsed > slowUpdate {
				level = slog.LevelInfo
			}
			slog.Log(ctx, level, "update processed",
				"kind", info.kind,
				"chat_id", info.chatID,
				"user_id", info.userID,
				"duration", elapsed,
			)
		}
	}
}
