package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/set-night/wondercam/internal/domain"
)

type step struct {
	chunk domain.Chunk
	err   error
}

// scriptedStream replays a fixed list of chunks and errors.
type scriptedStream struct {
	steps  []step
	pos    int
	closed bool
	// onNext runs before each chunk is returned.
	onNext func(i int)
}

func newScriptedStream(chunks ...domain.Chunk) *scriptedStream {
	s := &scriptedStream{}
	for _, c := range chunks {
		s.steps = append(s.steps, step{chunk: c})
	}
	return s
}

func (s *scriptedStream) failAfter(err error) *scriptedStream {
	s.steps = append(s.steps, step{err: err})
	return s
}

func (s *scriptedStream) Next(ctx context.Context) (domain.Chunk, error) {
	if s.pos >= len(s.steps) {
		return domain.Chunk{}, io.EOF
	}
	st := s.steps[s.pos]
	if s.onNext != nil {
		s.onNext(s.pos)
	}
	s.pos++
	if st.err != nil {
		return domain.Chunk{}, st.err
	}
	return st.chunk, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type call struct {
	op       Operation
	photo    *domain.Photo
	text     string
	language string
	history  []domain.Message
}

// fakeAssistant records calls and hands out queued streams.
type fakeAssistant struct {
	mu      sync.Mutex
	calls   []call
	streams []ResponseStream
	err     error
	cleared int
}

func (f *fakeAssistant) queue(streams ...ResponseStream) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, streams...)
}

func (f *fakeAssistant) next(c call) (ResponseStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.streams) == 0 {
		return newScriptedStream(), nil
	}
	s := f.streams[0]
	f.streams = f.streams[1:]
	return s, nil
}

func (f *fakeAssistant) AnalyzePhoto(_ context.Context, photo domain.Photo, text, language string) (ResponseStream, error) {
	return f.next(call{op: OpAnalyzePhoto, photo: &photo, text: text, language: language})
}

func (f *fakeAssistant) GenerateImageFromPrompt(_ context.Context, text, language string) (ResponseStream, error) {
	return f.next(call{op: OpGenerateImage, text: text, language: language})
}

func (f *fakeAssistant) ContinueConversation(_ context.Context, history []domain.Message, text, language string, photo *domain.Photo) (ResponseStream, error) {
	return f.next(call{op: OpContinueConversation, history: history, text: text, language: language, photo: photo})
}

func (f *fakeAssistant) ClearConversationHistory() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeAssistant) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// staticSource is a ViewingSource returning a fixed value.
type staticSource struct {
	vc  *domain.ViewingContext
	err error
}

func (s staticSource) ViewingContext() (*domain.ViewingContext, error) {
	return s.vc, s.err
}

type panickingSource struct{}

func (panickingSource) ViewingContext() (*domain.ViewingContext, error) {
	panic("viewing state unavailable")
}

var errBackend = errors.New("backend exploded")

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func testPhoto(id string) domain.Photo {
	return domain.NewPhoto(id, "QUJDREVG", "image/jpeg", domain.NewDimensions(800, 600), fixedNow)
}

func newTestMachine(ai Assistant) *SessionMachine {
	resolver := NewPhotoResolver()
	resolver.now = func() time.Time { return fixedNow }
	resolver.newSuffix = func() string { return "sfx" }
	return NewSessionMachine(ai,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
		WithResolver(resolver),
	)
}
