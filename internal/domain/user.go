package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID         int64
	TelegramID int64
	IsAdmin    bool
	FirstName  string
	Username   string
	Language   string
	Balance    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u *User) CanAfford(cost decimal.Decimal) bool {
	return u.Balance.GreaterThanOrEqual(cost)
}
