package domain

import "errors"

var (
	ErrNoActiveSession     = errors.New("no active session")
	ErrSessionSuperseded   = errors.New("session superseded")
	ErrTurnInFlight        = errors.New("turn already in flight")
	ErrEmptyMessage        = errors.New("empty message")
	ErrUnknownChunk        = errors.New("unknown chunk kind")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidAmount       = errors.New("invalid amount")
)
