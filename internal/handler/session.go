package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/domain"
	"github.com/set-night/wondercam/internal/middleware"
	"github.com/set-night/wondercam/internal/service"
	tg "github.com/set-night/wondercam/internal/telegram"
)

// messageKey identifies a chat message in ChatState bookkeeping.
func messageKey(messageID int) string {
	return strconv.Itoa(messageID)
}

// sessionLanguage is the language a new session in chat starts with: the
// current session's, else the user's preference.
func (h *Handler) sessionLanguage(chat *service.ChatState, user *domain.User) string {
	if s, ok := chat.Machine.Snapshot(); ok && s.Language != "" {
		return s.Language
	}
	if user != nil && h.cfg.IsSupportedLanguage(user.Language) {
		return user.Language
	}
	return h.cfg.DefaultLanguage
}

func (h *Handler) handleNew(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != "private" {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID
	chat := h.registry.GetOrCreate(chatID)

	chat.ResetMessages("")
	s := chat.Machine.StartDirectChat(h.sessionLanguage(chat, user))
	slog.Info("direct chat started", "chat_id", chatID, "session_id", s.ID)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "🆕 New chat started. Describe an image and I'll create it, or send a photo.",
	})
}

// HandlePhoto captures a photo and starts a new session grounded on it.
// A caption is sent as the first turn.
func (h *Handler) HandlePhoto(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Chat.Type != "private" {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	chatID := msg.Chat.ID

	photo, err := h.capturePhoto(ctx, b, msg)
	if err != nil {
		slog.Error("capture photo", "error", err, "chat_id", chatID)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "❌ Could not download your photo. Please try again.",
		})
		return
	}

	chat := h.registry.GetOrCreate(chatID)
	chat.ResetMessages(messageKey(msg.ID))
	s := chat.Machine.StartWithPhoto(photo, h.sessionLanguage(chat, user))
	slog.Info("photo session started",
		"chat_id", chatID,
		"session_id", s.ID,
		"photo_id", photo.ID,
		"bytes", photo.ApproxByteSize,
	)

	if msg.Caption == "" {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:          chatID,
			Text:            "📸 Got it! Ask me anything about this photo.",
			ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
		})
		return
	}

	h.runTurn(ctx, b, turnRequest{
		chatID:  chatID,
		replyTo: msg.ID,
		text:    msg.Caption,
		user:    user,
		chat:    chat,
	})
}

func (h *Handler) capturePhoto(ctx context.Context, b *bot.Bot, msg *models.Message) (domain.Photo, error) {
	primary, compressed, ok := tg.PhotoRenditions(msg.Photo)
	if !ok {
		return domain.Photo{}, fmt.Errorf("message %d has no photo sizes", msg.ID)
	}

	primaryData, mimeType, err := tg.DownloadBase64(ctx, b, primary.FileID)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("download primary: %w", err)
	}

	compressedData := primaryData
	if compressed.FileID != primary.FileID {
		compressedData, _, err = tg.DownloadBase64(ctx, b, compressed.FileID)
		if err != nil {
			return domain.Photo{}, fmt.Errorf("download compressed: %w", err)
		}
	}

	return buildPhoto(fmt.Sprintf("tg_%d_%d", msg.Chat.ID, msg.ID), primaryData, compressedData, mimeType, primary, time.Now()), nil
}

func buildPhoto(id, primaryData, compressedData, mimeType string, size models.PhotoSize, now time.Time) domain.Photo {
	p := domain.NewPhoto(id, primaryData, mimeType, domain.NewDimensions(size.Width, size.Height), now)
	if compressedData != "" {
		p.CompressedImage = compressedData
	}
	return p
}
