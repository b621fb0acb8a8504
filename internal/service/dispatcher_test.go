package service

import (
	"context"
	"testing"
	"time"

	"github.com/set-night/wondercam/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectOperation(t *testing.T) {
	tests := []struct {
		name         string
		messageCount int
		hasPhoto     bool
		want         Operation
	}{
		{"first turn with photo", 0, true, OpAnalyzePhoto},
		{"first turn without photo", 0, false, OpGenerateImage},
		{"continuation with photo", 3, true, OpContinueConversation},
		{"continuation without photo", 1, false, OpContinueConversation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectOperation(tt.messageCount, tt.hasPhoto))
		})
	}
}

func TestDispatchInvokesSelectedOperation(t *testing.T) {
	photo := testPhoto("p1")
	prior := domain.NewSession("s", nil, "fr", fixedNow).
		WithMessage(domain.Message{ID: "m1", Role: domain.RoleUser, Content: "a"}).
		WithMessage(domain.Message{ID: "m2", Role: domain.RoleAssistant, Content: "b"})
	empty := domain.NewSession("s", nil, "fr", fixedNow)

	tests := []struct {
		name        string
		session     domain.Session
		photo       *domain.Photo
		want        Operation
		wantHistory int
	}{
		{"analyze", empty, &photo, OpAnalyzePhoto, 0},
		{"generate", empty, nil, OpGenerateImage, 0},
		{"continue with photo", prior, &photo, OpContinueConversation, 2},
		{"continue without photo", prior, nil, OpContinueConversation, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &fakeAssistant{}

			stream, op, err := Dispatch(context.Background(), ai, tt.session, "hello", tt.photo)

			require.NoError(t, err)
			require.NotNil(t, stream)
			assert.Equal(t, tt.want, op)

			c := ai.lastCall()
			assert.Equal(t, tt.want, c.op)
			assert.Equal(t, "hello", c.text)
			assert.Equal(t, "fr", c.language)
			assert.Len(t, c.history, tt.wantHistory)
			if tt.photo != nil {
				require.NotNil(t, c.photo)
				assert.Equal(t, tt.photo.ID, c.photo.ID)
			} else {
				assert.Nil(t, c.photo)
			}
		})
	}
}

func TestDispatchPropagatesErrorUnchanged(t *testing.T) {
	ai := &fakeAssistant{err: errBackend}
	s := domain.NewSession("s", nil, "en", time.Now())

	stream, op, err := Dispatch(context.Background(), ai, s, "draw", nil)

	assert.Nil(t, stream)
	assert.Equal(t, OpGenerateImage, op)
	assert.Same(t, errBackend, err)
}

type nilStreamAssistant struct{ fakeAssistant }

func (n *nilStreamAssistant) GenerateImageFromPrompt(context.Context, string, string) (ResponseStream, error) {
	return nil, nil
}

func TestDispatchRejectsNilStream(t *testing.T) {
	s := domain.NewSession("s", nil, "en", time.Now())

	_, _, err := Dispatch(context.Background(), &nilStreamAssistant{}, s, "draw", nil)

	assert.ErrorIs(t, err, errNoStream)
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "analyze_photo", OpAnalyzePhoto.String())
	assert.Equal(t, "generate_image", OpGenerateImage.String())
	assert.Equal(t, "continue_conversation", OpContinueConversation.String())
	assert.Equal(t, "operation(9)", Operation(9).String())
}
