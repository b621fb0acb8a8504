package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/set-night/wondercam/internal/domain"
)

var errNoStream = errors.New("assistant returned no stream")

type Operation int

const (
	OpAnalyzePhoto Operation = iota + 1
	OpGenerateImage
	OpContinueConversation
)

func (o Operation) String() string {
	switch o {
	case OpAnalyzePhoto:
		return "analyze_photo"
	case OpGenerateImage:
		return "generate_image"
	case OpContinueConversation:
		return "continue_conversation"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// SelectOperation picks the backend operation from the conversation
// position and the presence of a subject photo.
func SelectOperation(messageCount int, hasPhoto bool) Operation {
	switch {
	case messageCount > 0:
		return OpContinueConversation
	case hasPhoto:
		return OpAnalyzePhoto
	default:
		return OpGenerateImage
	}
}

// Dispatch opens the response stream for a turn. history is the session as
// it was before the user's message was appended. Errors from the assistant
// are returned unchanged.
func Dispatch(ctx context.Context, ai Assistant, history domain.Session, text string, photo *domain.Photo) (ResponseStream, Operation, error) {
	op := SelectOperation(len(history.Messages), photo != nil)

	var (
		stream ResponseStream
		err    error
	)
	switch op {
	case OpAnalyzePhoto:
		stream, err = ai.AnalyzePhoto(ctx, *photo, text, history.Language)
	case OpGenerateImage:
		stream, err = ai.GenerateImageFromPrompt(ctx, text, history.Language)
	case OpContinueConversation:
		stream, err = ai.ContinueConversation(ctx, history.Messages, text, history.Language, photo)
	}
	if err != nil {
		return nil, op, err
	}
	if stream == nil {
		return nil, op, errNoStream
	}
	return stream, op, nil
}
