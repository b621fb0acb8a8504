package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/set-night/wondercam/internal/domain"
)

type editFunc func(ctx context.Context, text string) error

// streamPresenter mirrors the streaming assistant message of one session
// into a chat message. Snapshots arrive on the turn's goroutine; edits run
// on the presenter's own goroutine, at most once per interval, and always
// show the latest text.
type streamPresenter struct {
	sessionID string
	interval  time.Duration
	edit      editFunc

	mu     sync.Mutex
	latest string

	wake chan struct{}
	done chan struct{}
}

func newStreamPresenter(sessionID string, interval time.Duration, edit editFunc) *streamPresenter {
	return &streamPresenter{
		sessionID: sessionID,
		interval:  interval,
		edit:      edit,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Observe is a SessionMachine observer. It never blocks.
func (p *streamPresenter) Observe(s domain.Session) {
	if s.ID != p.sessionID {
		return
	}
	m, ok := s.StreamingMessage()
	if !ok || m.Content == "" {
		return
	}

	p.mu.Lock()
	p.latest = m.Content
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Start runs the edit loop until the returned stop function is called.
// stop waits for an in-progress edit to finish.
func (p *streamPresenter) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	go p.run(ctx)
	return func() {
		cancel()
		<-p.done
	}
}

func (p *streamPresenter) run(ctx context.Context) {
	defer close(p.done)

	var (
		shown    string
		lastEdit time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}

		if wait := p.interval - time.Since(lastEdit); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		p.mu.Lock()
		text := p.latest
		p.mu.Unlock()
		if text == shown {
			continue
		}

		if err := p.edit(ctx, text); err != nil && ctx.Err() == nil {
			slog.Warn("edit streaming message", "error", err, "session_id", p.sessionID)
		}
		shown = text
		lastEdit = time.Now()
	}
}
