package config

import "time"

const (
	// AI request timeout, covers the whole streamed response
	RequestTimeout = 120 * time.Second

	// Minimum gap between in-place edits of a streaming reply
	StreamEditInterval = 1200 * time.Millisecond

	// Typing indicator refresh
	TypingInterval = 4 * time.Second

	// Square size assumed for generated images when the backend does not report one
	DefaultGeneratedDimension = 1024

	// Long edge limit for the compressed rendition of a captured photo
	CompressedMaxEdge = 1024

	// Session registry
	MaxSessions              = 1000
	SessionInactivityTimeout = 24 * time.Hour
	SessionCleanupInterval   = 1 * time.Hour

	// Rate limits (per chat)
	RateLimitWindow = time.Minute
	RateLimitTurns  = 10

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// SSE scanner buffer, generated images arrive as single base64 lines
	MaxStreamLineSize = 32 << 20

	// Database pool
	DBMaxConns = 10
	DBMinConns = 2
)

// LanguageNames labels the language picker.
var LanguageNames = map[string]string{
	"en": "English",
	"zh": "中文",
	"es": "Español",
	"fr": "Français",
	"ja": "日本語",
}
