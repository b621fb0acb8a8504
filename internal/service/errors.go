package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/set-night/wondercam/internal/domain"
)

type APIErrorKind int

const (
	APIErrorStatus APIErrorKind = iota
	APIErrorRateLimited
	APIErrorUnavailable
	APIErrorStream
)

// APIError is a failure reported by the WonderCam backend.
type APIError struct {
	Kind       APIErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	switch e.Kind {
	case APIErrorRateLimited:
		return "rate limited by WonderCam API (429)"
	case APIErrorUnavailable:
		return "WonderCam API unavailable (503)"
	case APIErrorStream:
		return fmt.Sprintf("WonderCam stream error: %s", e.Message)
	default:
		return fmt.Sprintf("WonderCam API status %d: %s", e.StatusCode, e.Message)
	}
}

// DescribeFailure turns a turn error into text suitable for an assistant
// error message.
func DescribeFailure(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Kind == APIErrorRateLimited:
		return "Too many requests right now. Please try again in a moment."
	case errors.As(err, &apiErr) && apiErr.Kind == APIErrorUnavailable:
		return "The AI service is temporarily unavailable. Please try again later."
	case errors.Is(err, context.DeadlineExceeded):
		return "The AI took too long to respond. Please try again."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, domain.ErrUnknownChunk):
		return "The AI sent a response I could not read."
	default:
		return fmt.Sprintf("Sorry, something went wrong: %v", err)
	}
}
