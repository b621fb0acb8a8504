package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/config"
	"github.com/set-night/wondercam/internal/domain"
)

const MaxMessageLen = config.MaxTelegramMessageLen

// Photo captions are limited to 1024 characters.
const maxCaptionLen = 1024

// SendLongMessage sends a potentially long message, splitting it into parts if needed.
// Falls back to plain text if Markdown parsing fails. It returns the first
// message sent.
func SendLongMessage(ctx context.Context, b *bot.Bot, chatID int64, text string, replyToID *int) (*models.Message, error) {
	text = FixMarkdown(text)
	parts := SplitMessage(text, MaxMessageLen)

	var first *models.Message
	for _, part := range parts {
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      part,
			ParseMode: models.ParseModeMarkdownV1,
		}
		if replyToID != nil {
			params.ReplyParameters = &models.ReplyParameters{
				MessageID: *replyToID,
			}
			replyToID = nil // only reply to first part
		}

		msg, err := b.SendMessage(ctx, params)
		if err != nil {
			slog.Warn("markdown send failed, falling back to plain text", "error", err)
			params.ParseMode = ""
			params.Text = PlainText(part)
			msg, err = b.SendMessage(ctx, params)
			if err != nil {
				return first, fmt.Errorf("send message: %w", err)
			}
		}
		if first == nil {
			first = msg
		}
	}

	return first, nil
}

// EditMessage replaces the text of a message in place. Text longer than one
// message is truncated; callers send the full reply separately.
func EditMessage(ctx context.Context, b *bot.Bot, chatID int64, messageID int, text string) error {
	text = Truncate(text, MaxMessageLen)

	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeMarkdownV1,
	})
	if err != nil && !isNotModified(err) {
		_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: messageID,
			Text:      PlainText(text),
		})
	}
	if err != nil && isNotModified(err) {
		return nil
	}
	return err
}

// Telegram rejects edits that leave the message unchanged.
func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

// DeleteMessage removes a message, logging instead of failing.
func DeleteMessage(ctx context.Context, b *bot.Bot, chatID int64, messageID int) {
	if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		slog.Warn("delete message", "error", err, "chat_id", chatID, "message_id", messageID)
	}
}

// StartChatAction sends action every TypingInterval until the returned
// cancel function is called.
func StartChatAction(ctx context.Context, b *bot.Bot, chatID int64, action models.ChatAction) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(config.TypingInterval)
		defer ticker.Stop()
		b.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: action,
		})
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.SendChatAction(ctx, &bot.SendChatActionParams{
					ChatID: chatID,
					Action: action,
				})
			}
		}
	}()
	return cancel
}

// StartTyping shows "typing..." until cancelled.
func StartTyping(ctx context.Context, b *bot.Bot, chatID int64) context.CancelFunc {
	return StartChatAction(ctx, b, chatID, models.ChatActionTyping)
}

// SendImage uploads a base64 image as a photo.
func SendImage(ctx context.Context, b *bot.Bot, chatID int64, img domain.ImagePayload, caption string, replyToID *int) (*models.Message, error) {
	data, _ := domain.StripDataURL(img.Data)
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	params := &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: imageFilename(img.MimeType), Data: bytes.NewReader(raw)},
		Caption: Truncate(PlainText(caption), maxCaptionLen),
	}
	if replyToID != nil {
		params.ReplyParameters = &models.ReplyParameters{MessageID: *replyToID}
	}

	msg, err := b.SendPhoto(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("send photo: %w", err)
	}
	return msg, nil
}

func imageFilename(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "wondercam.jpg"
	case "image/webp":
		return "wondercam.webp"
	default:
		return "wondercam.png"
	}
}
