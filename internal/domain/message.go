package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a session's history. Streaming marks an assistant
// message that is still receiving chunks.
type Message struct {
	ID             string
	Role           Role
	Content        string
	CreatedAt      time.Time
	Streaming      bool
	SubjectPhotoID string
	Image          string // base64, set only when the assistant produced an image
	ImageMimeType  string
	IsError        bool
}

func (m Message) HasImage() bool {
	return m.Image != ""
}
