package domain

import (
	"slices"
	"time"
)

// Session is an immutable snapshot of a conversation. The With* methods
// return a new snapshot and never modify the receiver's message slice, so
// snapshots handed to observers stay consistent.
type Session struct {
	ID        string
	Photo     *Photo
	Messages  []Message
	Language  string
	Active    bool
	CreatedAt time.Time
}

func NewSession(id string, photo *Photo, language string, now time.Time) Session {
	return Session{
		ID:        id,
		Photo:     photo,
		Messages:  []Message{},
		Language:  language,
		Active:    true,
		CreatedAt: now,
	}
}

func (s Session) WithMessage(m Message) Session {
	msgs := make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(msgs, s.Messages)
	s.Messages = append(msgs, m)
	return s
}

// WithMessageUpdate applies fn to the message with the given id. The
// message keeps its position; unknown ids leave the session unchanged.
func (s Session) WithMessageUpdate(id string, fn func(Message) Message) Session {
	i := slices.IndexFunc(s.Messages, func(m Message) bool { return m.ID == id })
	if i < 0 {
		return s
	}
	msgs := slices.Clone(s.Messages)
	updated := fn(msgs[i])
	updated.ID = id
	msgs[i] = updated
	s.Messages = msgs
	return s
}

// WithPhoto sets the canonical photo. A session that already has a photo
// keeps it.
func (s Session) WithPhoto(p Photo) Session {
	if s.Photo != nil {
		return s
	}
	s.Photo = &p
	return s
}

func (s Session) WithLanguage(language string) Session {
	s.Language = language
	return s
}

func (s Session) Superseded() Session {
	s.Active = false
	return s
}

func (s Session) Message(id string) (Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// StreamingMessage returns the message currently receiving chunks, if any.
func (s Session) StreamingMessage() (Message, bool) {
	for _, m := range s.Messages {
		if m.Streaming {
			return m, true
		}
	}
	return Message{}, false
}

func (s Session) StreamingCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Streaming {
			n++
		}
	}
	return n
}
