package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/wondercam/internal/domain"
)

type SessionState int

const (
	StateUninitialized SessionState = iota
	StateActive
	StateSuperseded
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// TurnResult describes a completed turn.
type TurnResult struct {
	SessionID     string
	UserMessageID string
	MessageID     string
	Operation     Operation
	Subject       *domain.Photo
	Text          string
	HasImage      bool
	Image         domain.ImagePayload
	Promoted      bool
}

// SessionMachine owns the lifecycle of one chat's session. The session is
// an immutable snapshot replaced as a whole on every mutation, so readers
// never observe a partial update. Observers receive every snapshot in the
// order the replaces happened, outside the lock. A mutation made from
// inside an observer is delivered after that observer returns.
type SessionMachine struct {
	ai       Assistant
	resolver *PhotoResolver
	now      func() time.Time
	newID    func() string

	mu        sync.Mutex
	session   *domain.Session
	inFlight  string
	observers map[int]func(domain.Session)
	nextObs   int

	// Snapshots waiting for observers, drained by one goroutine at a time.
	pending    []delivery
	delivering bool
}

type delivery struct {
	observers []func(domain.Session)
	snapshot  domain.Session
}

type MachineOption func(*SessionMachine)

func WithClock(now func() time.Time) MachineOption {
	return func(m *SessionMachine) { m.now = now }
}

func WithIDGenerator(newID func() string) MachineOption {
	return func(m *SessionMachine) { m.newID = newID }
}

func WithResolver(r *PhotoResolver) MachineOption {
	return func(m *SessionMachine) { m.resolver = r }
}

func NewSessionMachine(ai Assistant, opts ...MachineOption) *SessionMachine {
	m := &SessionMachine{
		ai:        ai,
		resolver:  NewPhotoResolver(),
		now:       time.Now,
		newID:     uuid.NewString,
		observers: make(map[int]func(domain.Session)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartWithPhoto begins a session grounded on a captured photo,
// superseding any current session.
func (m *SessionMachine) StartWithPhoto(photo domain.Photo, language string) domain.Session {
	return m.start(&photo, language)
}

// StartDirectChat begins a session without a photo, superseding any
// current session.
func (m *SessionMachine) StartDirectChat(language string) domain.Session {
	return m.start(nil, language)
}

func (m *SessionMachine) start(photo *domain.Photo, language string) domain.Session {
	next := domain.NewSession(m.newID(), photo, language, m.now())

	m.mu.Lock()
	prev := m.session
	m.session = &next
	m.inFlight = ""
	if prev != nil {
		m.enqueueLocked(prev.Superseded())
	}
	m.enqueueLocked(next)
	m.mu.Unlock()

	if prev != nil {
		slog.Debug("session superseded", "session_id", prev.ID, "next_session_id", next.ID)
		m.ai.ClearConversationHistory()
	}
	m.deliver()
	return next
}

func (m *SessionMachine) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return StateUninitialized
	}
	return StateActive
}

// StateOf reports the lifecycle state of a session id from this machine.
func (m *SessionMachine) StateOf(sessionID string) SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.session == nil:
		return StateUninitialized
	case m.session.ID == sessionID:
		return StateActive
	default:
		return StateSuperseded
	}
}

func (m *SessionMachine) Snapshot() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return domain.Session{}, false
	}
	return *m.session, true
}

// Busy reports whether a turn is in flight for the current session.
func (m *SessionMachine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight != ""
}

// SetLanguage changes the language of the active session in place.
func (m *SessionMachine) SetLanguage(language string) error {
	if !m.Update(func(s domain.Session) domain.Session { return s.WithLanguage(language) }) {
		return domain.ErrNoActiveSession
	}
	return nil
}

// Subscribe registers fn for every new snapshot and returns a function that
// removes it.
func (m *SessionMachine) Subscribe(fn func(domain.Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}

// Update is the single mutation entry point for the current session. It
// reports false when there is no session.
func (m *SessionMachine) Update(fn func(domain.Session) domain.Session) bool {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return false
	}
	id := m.session.ID
	m.mu.Unlock()
	return m.apply(id, fn)
}

func (m *SessionMachine) apply(sessionID string, fn func(domain.Session) domain.Session) bool {
	m.mu.Lock()
	if m.session == nil || m.session.ID != sessionID {
		m.mu.Unlock()
		return false
	}
	next := fn(*m.session)
	m.session = &next
	m.enqueueLocked(next)
	m.mu.Unlock()

	m.deliver()
	return true
}

// Send runs one turn: resolves the subject photo, appends the user message
// and a streaming placeholder, dispatches to the assistant, folds the
// response into the placeholder and finally applies image promotion. A
// failed turn is recorded as an assistant error message and its error is
// returned.
func (m *SessionMachine) Send(ctx context.Context, text string, view ViewingSource) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, domain.ErrEmptyMessage
	}

	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return TurnResult{}, domain.ErrNoActiveSession
	}
	if m.inFlight != "" {
		m.mu.Unlock()
		return TurnResult{}, domain.ErrTurnInFlight
	}
	history := *m.session
	m.inFlight = history.ID
	m.mu.Unlock()

	defer m.finishTurn(history.ID)

	apply := func(fn func(domain.Session) domain.Session) bool {
		return m.apply(history.ID, fn)
	}

	subject := m.resolver.Resolve(view, history.Photo)
	result := TurnResult{
		SessionID:     history.ID,
		UserMessageID: m.newID(),
		MessageID:     m.newID(),
		Subject:       subject,
	}
	subjectID := ""
	if subject != nil {
		subjectID = subject.ID
	}

	userMsg := domain.Message{
		ID:             result.UserMessageID,
		Role:           domain.RoleUser,
		Content:        text,
		CreatedAt:      m.now(),
		SubjectPhotoID: subjectID,
	}
	if !apply(func(s domain.Session) domain.Session { return s.WithMessage(userMsg) }) {
		return result, domain.ErrSessionSuperseded
	}

	reducer := newStreamReducer(apply, result.MessageID, m.now, m.newID)
	if !reducer.Begin(subjectID) {
		return result, domain.ErrSessionSuperseded
	}

	stream, op, err := Dispatch(ctx, m.ai, history, text, subject)
	result.Operation = op
	if err != nil {
		slog.Error("dispatch turn", "error", err, "session_id", history.ID, "operation", op)
		reducer.Fail(err)
		return result, err
	}

	streamed, err := reducer.Consume(ctx, stream)
	if err != nil {
		slog.Error("consume stream", "error", err, "session_id", history.ID, "operation", op)
		reducer.Fail(err)
		return result, err
	}

	result.Text = streamed.Text
	result.HasImage = streamed.HasImage
	result.Image = streamed.Image

	apply(func(s domain.Session) domain.Session {
		next, promoted := MaybePromote(s, streamed, m.now())
		result.Promoted = promoted
		return next
	})
	if result.Promoted {
		slog.Info("generated image promoted to session photo", "session_id", history.ID)
	}

	return result, nil
}

func (m *SessionMachine) finishTurn(sessionID string) {
	m.mu.Lock()
	if m.inFlight != sessionID {
		m.mu.Unlock()
		return
	}
	m.inFlight = ""
	// Observers read Busy to drop the loading indicator.
	if m.session != nil {
		m.enqueueLocked(*m.session)
	}
	m.mu.Unlock()

	m.deliver()
}

// enqueueLocked queues s for the current observers. m.mu must be held.
func (m *SessionMachine) enqueueLocked(s domain.Session) {
	if len(m.observers) == 0 {
		return
	}
	obs := make([]func(domain.Session), 0, len(m.observers))
	for _, fn := range m.observers {
		obs = append(obs, fn)
	}
	m.pending = append(m.pending, delivery{observers: obs, snapshot: s})
}

// deliver drains the queue unless another goroutine already is, in which
// case that goroutine delivers our snapshots too.
func (m *SessionMachine) deliver() {
	m.mu.Lock()
	if m.delivering {
		m.mu.Unlock()
		return
	}
	m.delivering = true
	m.mu.Unlock()

	drained := false
	defer func() {
		// An observer panicked; let the next mutation resume delivery.
		if !drained {
			m.mu.Lock()
			m.delivering = false
			m.mu.Unlock()
		}
	}()

	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.delivering = false
			m.mu.Unlock()
			drained = true
			return
		}
		d := m.pending[0]
		m.pending[0] = delivery{}
		m.pending = m.pending[1:]
		m.mu.Unlock()

		for _, fn := range d.observers {
			fn(d.snapshot)
		}
	}
}
