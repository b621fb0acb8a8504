package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/wondercam/internal/domain"
	"github.com/shopspring/decimal"
)

type BillingService struct {
	db *pgxpool.Pool
}

func NewBillingService(db *pgxpool.Pool) *BillingService {
	return &BillingService{db: db}
}

// Charge atomically deducts amount from the user's balance and records the
// debit. It fails with ErrInsufficientBalance without touching the ledger.
func (s *BillingService) Charge(ctx context.Context, userID int64, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if amount.LessThan(decimal.Zero) {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance decimal.Decimal
	if err := tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("lock user: %w", err)
	}

	if balance.Sub(amount).LessThan(decimal.Zero) {
		return balance, domain.ErrInsufficientBalance
	}

	var newBalance decimal.Decimal
	if err := tx.QueryRow(ctx,
		`UPDATE users SET balance = balance - $2, updated_at = now() WHERE id = $1 RETURNING balance`,
		userID, amount,
	).Scan(&newBalance); err != nil {
		return decimal.Zero, fmt.Errorf("update balance: %w", err)
	}

	if err := s.record(ctx, tx, userID, amount.Neg(), domain.TxTypeDebit, description); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit: %w", err)
	}
	return newBalance, nil
}

// Credit adds funds to the user's balance.
func (s *BillingService) Credit(ctx context.Context, userID int64, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var newBalance decimal.Decimal
	if err := tx.QueryRow(ctx,
		`UPDATE users SET balance = balance + $2, updated_at = now() WHERE id = $1 RETURNING balance`,
		userID, amount,
	).Scan(&newBalance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("update balance: %w", err)
	}

	if err := s.record(ctx, tx, userID, amount, domain.TxTypeCredit, description); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit: %w", err)
	}
	return newBalance, nil
}

func (s *BillingService) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := s.db.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// History returns the user's most recent ledger entries, newest first.
func (s *BillingService) History(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, amount, tx_type, description, created_at
		FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var txType string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &txType, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.TxType = domain.TxType(txType)
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func (s *BillingService) record(ctx context.Context, tx pgx.Tx, userID int64, amount decimal.Decimal, txType domain.TxType, description string) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (user_id, amount, tx_type, description)
		VALUES ($1, $2, $3, $4)`,
		userID, amount, string(txType), description,
	); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}
