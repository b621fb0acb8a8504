package service

import (
	"context"

	"github.com/set-night/wondercam/internal/domain"
)

// ResponseStream is a finite, non-restartable sequence of chunks. Next
// returns io.EOF once the sequence is exhausted.
type ResponseStream interface {
	Next(ctx context.Context) (domain.Chunk, error)
	Close() error
}

// Assistant is the AI backend as seen by a single session.
type Assistant interface {
	AnalyzePhoto(ctx context.Context, photo domain.Photo, text, language string) (ResponseStream, error)
	GenerateImageFromPrompt(ctx context.Context, text, language string) (ResponseStream, error)
	ContinueConversation(ctx context.Context, history []domain.Message, text, language string, photo *domain.Photo) (ResponseStream, error)
	ClearConversationHistory()
}
