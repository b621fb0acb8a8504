package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/config"
	"github.com/set-night/wondercam/internal/domain"
	"github.com/set-night/wondercam/internal/middleware"
	"github.com/set-night/wondercam/internal/service"
	tg "github.com/set-night/wondercam/internal/telegram"
)

type turnRequest struct {
	chatID  int64
	replyTo int
	text    string
	user    *domain.User
	chat    *service.ChatState
	// The message the user replied to, if any.
	reply *models.Message
}

// HandleText processes private text messages as conversation turns. Text
// without a session starts a direct chat.
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Chat.Type != "private" {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	chat := h.registry.GetOrCreate(msg.Chat.ID)
	if chat.Machine.State() == service.StateUninitialized {
		chat.ResetMessages("")
		s := chat.Machine.StartDirectChat(h.sessionLanguage(chat, user))
		slog.Info("direct chat started implicitly", "chat_id", msg.Chat.ID, "session_id", s.ID)
	}

	h.runTurn(ctx, b, turnRequest{
		chatID:  msg.Chat.ID,
		replyTo: msg.ID,
		text:    msg.Text,
		user:    user,
		chat:    chat,
		reply:   msg.ReplyToMessage,
	})
}

// viewingFromReply derives what the user is looking at from the message
// they replied to: the session photo, or an image the bot generated.
func viewingFromReply(chat *service.ChatState, reply *models.Message) (domain.ViewingContext, bool) {
	if reply == nil {
		return domain.ViewingContext{}, false
	}
	key := messageKey(reply.ID)
	if chat.IsPhotoMessage(key) {
		return domain.ViewingContext{IsInitialPhoto: true}, true
	}
	if img, ok := chat.Image(key); ok {
		return domain.ViewingContext{
			ImageKey:  "generated_" + key,
			ImageData: dataURL(img),
		}, true
	}
	return domain.ViewingContext{}, false
}

// viewingSource builds the turn-local viewing context for a request. It
// returns nil when the reply points at nothing the chat remembers.
func viewingSource(chat *service.ChatState, reply *models.Message) service.ViewingSource {
	vc, ok := viewingFromReply(chat, reply)
	if !ok {
		return nil
	}
	return service.NewViewingContext(vc)
}

func dataURL(img domain.ImagePayload) string {
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, img.Data)
}

func (h *Handler) runTurn(ctx context.Context, b *bot.Bot, req turnRequest) {
	if req.chat.Machine.Busy() {
		h.sendBusy(ctx, b, req)
		return
	}
	if !req.user.CanAfford(h.turnCost) {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: req.chatID,
			Text: fmt.Sprintf("❌ Not enough credits. An answer costs %s, you have %s. See /balance",
				service.FormatCredits(h.turnCost), service.FormatCredits(req.user.Balance)),
		})
		return
	}

	stopTyping := tg.StartTyping(ctx, b, req.chatID)
	defer stopTyping()

	status, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          req.chatID,
		Text:            "⏳ Thinking...",
		ReplyParameters: &models.ReplyParameters{MessageID: req.replyTo},
	})
	if err != nil {
		slog.Warn("send status message", "error", err, "chat_id", req.chatID)
		status = nil
	}

	stopPresenting := func() {}
	if snap, ok := req.chat.Machine.Snapshot(); ok && status != nil {
		presenter := newStreamPresenter(snap.ID, config.StreamEditInterval, func(ctx context.Context, text string) error {
			return tg.EditMessage(ctx, b, req.chatID, status.ID, tg.StreamingPreview(text, tg.MaxMessageLen))
		})
		unsubscribe := req.chat.Machine.Subscribe(presenter.Observe)
		stop := presenter.Start(ctx)
		stopPresenting = func() {
			unsubscribe()
			stop()
		}
	}

	turnCtx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
	defer cancel()

	res, err := req.chat.Machine.Send(turnCtx, req.text, viewingSource(req.chat, req.reply))
	stopPresenting()
	stopTyping()

	if err != nil {
		h.failTurn(ctx, b, req, status, res, err)
		return
	}

	h.deliverTurn(ctx, b, req, status, res)
	h.chargeTurn(ctx, req, res)
}

func (h *Handler) sendBusy(ctx context.Context, b *bot.Bot, req turnRequest) {
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          req.chatID,
		Text:            "⏳ Still working on your previous message, please wait.",
		ReplyParameters: &models.ReplyParameters{MessageID: req.replyTo},
	})
}

func (h *Handler) failTurn(ctx context.Context, b *bot.Bot, req turnRequest, status *models.Message, res service.TurnResult, err error) {
	var text string
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		if status != nil {
			tg.DeleteMessage(ctx, b, req.chatID, status.ID)
		}
		return
	case errors.Is(err, domain.ErrTurnInFlight):
		if status != nil {
			tg.DeleteMessage(ctx, b, req.chatID, status.ID)
		}
		h.sendBusy(ctx, b, req)
		return
	case errors.Is(err, domain.ErrSessionSuperseded):
		text = "🔄 A new session was started, this answer was discarded."
	default:
		text = "❌ " + service.DescribeFailure(err)
		if !errors.Is(err, context.Canceled) {
			h.tgLogger.LogTurnFailure(req.user.TelegramID, res.Operation.String(), err)
		}
	}

	if status != nil {
		if editErr := tg.EditMessage(ctx, b, req.chatID, status.ID, text); editErr == nil {
			return
		}
	}
	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: req.chatID, Text: text})
}

func (h *Handler) deliverTurn(ctx context.Context, b *bot.Bot, req turnRequest, status *models.Message, res service.TurnResult) {
	text := res.Text
	if text == "" && !res.HasImage {
		text = "🤷 The AI returned an empty answer."
	}

	switch {
	case text == "":
		if status != nil {
			tg.DeleteMessage(ctx, b, req.chatID, status.ID)
		}
	case status != nil && utf8.RuneCountInString(text) <= tg.MaxMessageLen:
		if err := tg.EditMessage(ctx, b, req.chatID, status.ID, tg.FixMarkdown(text)); err != nil {
			slog.Warn("edit final answer", "error", err, "chat_id", req.chatID)
		}
	default:
		if status != nil {
			tg.DeleteMessage(ctx, b, req.chatID, status.ID)
		}
		replyTo := req.replyTo
		if _, err := tg.SendLongMessage(ctx, b, req.chatID, text, &replyTo); err != nil {
			slog.Error("send answer", "error", err, "chat_id", req.chatID)
		}
	}

	if !res.HasImage {
		return
	}

	stopUpload := tg.StartChatAction(ctx, b, req.chatID, models.ChatActionUploadPhoto)
	defer stopUpload()

	replyTo := req.replyTo
	sent, err := tg.SendImage(ctx, b, req.chatID, res.Image, "", &replyTo)
	if err != nil {
		slog.Error("send generated image", "error", err, "chat_id", req.chatID, "session_id", res.SessionID)
		h.tgLogger.LogError(err, "send generated image")
		return
	}
	req.chat.RememberImage(messageKey(sent.ID), res.Image)
}

func (h *Handler) chargeTurn(ctx context.Context, req turnRequest, res service.TurnResult) {
	if !h.turnCost.IsPositive() {
		return
	}
	balance, err := h.billingService.Charge(ctx, req.user.ID, h.turnCost, fmt.Sprintf("turn: %s", res.Operation))
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		slog.Warn("balance ran out during turn", "user_id", req.user.ID)
	case err != nil:
		slog.Error("charge turn", "error", err, "user_id", req.user.ID)
		h.tgLogger.LogError(err, fmt.Sprintf("charge turn for user %d", req.user.TelegramID))
	default:
		slog.Debug("turn charged", "user_id", req.user.ID, "balance", balance.String())
	}
}
