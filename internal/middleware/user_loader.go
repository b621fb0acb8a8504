package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/domain"
)

type ctxKey string

const UserKey ctxKey = "user"

// GetUser extracts user from context.
func GetUser(ctx context.Context) *domain.User {
	u, ok := ctx.Value(UserKey).(*domain.User)
	if !ok {
		return nil
	}
	return u
}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, UserKey, u)
}

// UserFinder loads or registers the account behind a Telegram user.
type UserFinder interface {
	FindOrCreate(ctx context.Context, telegramID int64, firstName, username string, isAdmin bool) (*domain.User, bool, error)
	UpdateInfo(ctx context.Context, userID int64, firstName, username string) error
}

// RegistrationNotifier is told about accounts created on first contact.
type RegistrationNotifier interface {
	LogRegistration(telegramID int64, name, username string)
}

// UserLoader returns middleware that loads the user into context.
func UserLoader(users UserFinder, cfg interface{ IsAdmin(int64) bool }, notifier RegistrationNotifier) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			if update.Message != nil {
				from = update.Message.From
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
			}

			if from == nil {
				next(ctx, b, update)
				return
			}

			user, created, err := users.FindOrCreate(ctx, from.ID, from.FirstName, from.Username, cfg.IsAdmin(from.ID))
			switch {
			case err != nil:
				slog.Error("load user", "error", err, "telegram_id", from.ID)
			case user != nil:
				if !created && (user.FirstName != from.FirstName || user.Username != from.Username) {
					if err := users.UpdateInfo(ctx, user.ID, from.FirstName, from.Username); err != nil {
						slog.Warn("update user info", "error", err, "user_id", user.ID)
					} else {
						user.FirstName, user.Username = from.FirstName, from.Username
					}
				}
				ctx = WithUser(ctx, user)
				if created && notifier != nil {
					notifier.LogRegistration(from.ID, from.FirstName, from.Username)
				}
			}

			next(ctx, b, update)
		}
	}
}
