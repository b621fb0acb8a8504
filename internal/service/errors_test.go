package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/set-night/wondercam/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDescribeFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited", &APIError{Kind: APIErrorRateLimited, StatusCode: 429}, "Too many requests"},
		{"unavailable", fmt.Errorf("dispatch: %w", &APIError{Kind: APIErrorUnavailable, StatusCode: 503}), "temporarily unavailable"},
		{"timeout", fmt.Errorf("read stream: %w", context.DeadlineExceeded), "took too long"},
		{"cancelled", context.Canceled, "cancelled"},
		{"unknown chunk", fmt.Errorf("%w: chunk(9)", domain.ErrUnknownChunk), "could not read"},
		{"other", errBackend, "backend exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, DescribeFailure(tt.err), tt.want)
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Kind: APIErrorStatus, StatusCode: 418, Message: "teapot"}
	assert.Equal(t, "WonderCam API status 418: teapot", err.Error())
}
