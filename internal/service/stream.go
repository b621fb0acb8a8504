package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/set-night/wondercam/internal/domain"
)

var errReducerFinished = errors.New("stream reducer already finalized")

// applyFunc replaces the session with fn's result. It reports false when
// the target session is no longer current.
type applyFunc func(fn func(domain.Session) domain.Session) bool

// StreamResult is what a fully consumed response stream produced.
type StreamResult struct {
	MessageID string
	Text      string
	HasImage  bool
	Image     domain.ImagePayload
}

// StreamReducer folds one response stream into a single assistant message.
// A reducer is bound to one message id and finalizes it at most once.
type StreamReducer struct {
	apply     applyFunc
	messageID string
	now       func() time.Time
	newID     func() string

	text      strings.Builder
	image     *domain.ImagePayload
	finalized bool
}

func newStreamReducer(apply applyFunc, messageID string, now func() time.Time, newID func() string) *StreamReducer {
	return &StreamReducer{
		apply:     apply,
		messageID: messageID,
		now:       now,
		newID:     newID,
	}
}

// Begin appends the empty streaming placeholder.
func (r *StreamReducer) Begin(subjectPhotoID string) bool {
	placeholder := domain.Message{
		ID:             r.messageID,
		Role:           domain.RoleAssistant,
		CreatedAt:      r.now(),
		Streaming:      true,
		SubjectPhotoID: subjectPhotoID,
	}
	return r.apply(func(s domain.Session) domain.Session {
		return s.WithMessage(placeholder)
	})
}

// Consume reads the stream to exhaustion and finalizes the placeholder. On
// error the placeholder is left for Fail to settle.
func (r *StreamReducer) Consume(ctx context.Context, stream ResponseStream) (StreamResult, error) {
	defer stream.Close()

	if r.finalized {
		return StreamResult{}, errReducerFinished
	}

	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return StreamResult{}, fmt.Errorf("read stream: %w", err)
		}

		switch chunk.Kind {
		case domain.ChunkText:
			r.text.WriteString(chunk.Text)
			full := r.text.String()
			if !r.apply(func(s domain.Session) domain.Session {
				return s.WithMessageUpdate(r.messageID, func(m domain.Message) domain.Message {
					m.Content = full
					return m
				})
			}) {
				return StreamResult{}, domain.ErrSessionSuperseded
			}
		case domain.ChunkImage:
			img := chunk.Image
			r.image = &img
		default:
			return StreamResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownChunk, chunk.Kind)
		}
	}

	return r.finalize()
}

func (r *StreamReducer) finalize() (StreamResult, error) {
	r.finalized = true

	result := StreamResult{
		MessageID: r.messageID,
		Text:      r.text.String(),
	}
	if r.image != nil {
		result.HasImage = true
		result.Image = *r.image
	}

	ok := r.apply(func(s domain.Session) domain.Session {
		return s.WithMessageUpdate(r.messageID, func(m domain.Message) domain.Message {
			m.Content = result.Text
			m.Streaming = false
			if result.HasImage {
				m.Image = result.Image.Data
				m.ImageMimeType = result.Image.MimeType
			}
			return m
		})
	})
	if !ok {
		return result, domain.ErrSessionSuperseded
	}
	return result, nil
}

// Fail settles a turn that could not complete: the placeholder stops
// streaming and keeps whatever text already arrived, and a separate
// assistant error message describing the failure is appended.
func (r *StreamReducer) Fail(err error) {
	if r.finalized {
		return
	}
	r.finalized = true

	errMsg := domain.Message{
		ID:        r.newID(),
		Role:      domain.RoleAssistant,
		Content:   DescribeFailure(err),
		CreatedAt: r.now(),
		IsError:   true,
	}
	r.apply(func(s domain.Session) domain.Session {
		s = s.WithMessageUpdate(r.messageID, func(m domain.Message) domain.Message {
			m.Streaming = false
			return m
		})
		return s.WithMessage(errMsg)
	})
}
