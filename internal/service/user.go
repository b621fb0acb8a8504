package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/wondercam/internal/domain"
	"github.com/shopspring/decimal"
)

const userColumns = `id, telegram_id, is_admin, first_name, username, language, balance, created_at, updated_at`

type UserService struct {
	db              *pgxpool.Pool
	welcomeCredits  decimal.Decimal
	defaultLanguage string
}

func NewUserService(db *pgxpool.Pool, welcomeCredits decimal.Decimal, defaultLanguage string) *UserService {
	return &UserService{db: db, welcomeCredits: welcomeCredits, defaultLanguage: defaultLanguage}
}

// FindOrCreate loads a user by Telegram id, creating it with the welcome
// credits on first sight. The bool reports whether the user was created.
func (s *UserService) FindOrCreate(ctx context.Context, telegramID int64, firstName, username string, isAdmin bool) (*domain.User, bool, error) {
	user, err := s.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO users (telegram_id, first_name, username, is_admin, language, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING `+userColumns,
		telegramID, firstName, username, isAdmin, s.defaultLanguage, s.welcomeCredits,
	)
	user, err = scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost a race with a concurrent insert.
		tx.Rollback(ctx)
		user, err = s.GetByTelegramID(ctx, telegramID)
		return user, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}

	if s.welcomeCredits.GreaterThan(decimal.Zero) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO transactions (user_id, amount, tx_type, description)
			VALUES ($1, $2, $3, $4)`,
			user.ID, s.welcomeCredits, string(domain.TxTypeCredit), "welcome credits",
		); err != nil {
			return nil, false, fmt.Errorf("record welcome credits: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return user, true, nil
}

func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Count returns the number of registered users and how many joined since.
func (s *UserService) Count(ctx context.Context, since time.Time) (total, recent int64, err error) {
	err = s.db.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE created_at >= $1) FROM users`, since,
	).Scan(&total, &recent)
	if err != nil {
		return 0, 0, fmt.Errorf("count users: %w", err)
	}
	return total, recent, nil
}

func (s *UserService) UpdateInfo(ctx context.Context, userID int64, firstName, username string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE users SET first_name = $2, username = $3, updated_at = now() WHERE id = $1`,
		userID, firstName, username,
	)
	if err != nil {
		return fmt.Errorf("update user info: %w", err)
	}
	return nil
}

// SetLanguage stores the language new sessions start with.
func (s *UserService) SetLanguage(ctx context.Context, userID int64, language string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE users SET language = $2, updated_at = now() WHERE id = $1`,
		userID, language,
	)
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.TelegramID,
		&u.IsAdmin,
		&u.FirstName,
		&u.Username,
		&u.Language,
		&u.Balance,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}
