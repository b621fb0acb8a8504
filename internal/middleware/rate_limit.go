package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/config"
	"golang.org/x/time/rate"
)

// ChatLimiter hands out a token bucket per chat: RateLimitTurns messages
// per RateLimitWindow, refilled evenly.
type ChatLimiter struct {
	every time.Duration
	burst int

	mu        sync.Mutex
	limiters  map[int64]*limiterEntry
	lastPrune time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewChatLimiter(window time.Duration, turns int) *ChatLimiter {
	return &ChatLimiter{
		every:    window / time.Duration(turns),
		burst:    turns,
		limiters: make(map[int64]*limiterEntry),
	}
}

// Allow reports whether chatID may send another message at now.
func (l *ChatLimiter) Allow(chatID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[chatID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.limiters[chatID] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	if idle := l.every * time.Duration(l.burst); now.Sub(l.lastPrune) > idle {
		l.lastPrune = now
		if n := l.prune(now, idle); n > 0 {
			slog.Debug("pruned rate limit buckets", "removed", n)
		}
	}
	return allowed
}

// prune drops buckets untouched for longer than idle; they would have
// refilled completely anyway. Callers hold l.mu.
func (l *ChatLimiter) prune(now time.Time, idle time.Duration) int {
	removed := 0
	for chatID, e := range l.limiters {
		if now.Sub(e.lastSeen) > idle {
			delete(l.limiters, chatID)
			removed++
		}
	}
	return removed
}

// RateLimit returns middleware that enforces per-chat message limits.
func RateLimit(limiter *ChatLimiter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			// Only rate limit messages (not callbacks or other updates)
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			if !limiter.Allow(chatID, time.Now()) {
				slog.Debug("rate limited", "chat_id", chatID, "limit", config.RateLimitTurns)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chatID,
					Text:   "⏳ Too many requests. Please wait a moment.",
				})
				return
			}

			next(ctx, b, update)
		}
	}
}
