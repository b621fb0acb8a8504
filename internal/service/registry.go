package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/set-night/wondercam/internal/config"
	"github.com/set-night/wondercam/internal/domain"
)

// AssistantFactory creates the Assistant for a new chat.
type AssistantFactory func() Assistant

// ChatState is everything the bot keeps for one chat: the session machine
// and which chat messages carry images.
type ChatState struct {
	Machine *SessionMachine

	mu           sync.Mutex
	photoKey     string
	images       map[string]domain.ImagePayload
	lastActivity time.Time
}

// ResetMessages forgets message bookkeeping from a previous session.
func (c *ChatState) ResetMessages(photoKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photoKey = photoKey
	c.images = make(map[string]domain.ImagePayload)
}

func (c *ChatState) IsPhotoMessage(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return key != "" && c.photoKey == key
}

func (c *ChatState) RememberImage(key string, img domain.ImagePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.images == nil {
		c.images = make(map[string]domain.ImagePayload)
	}
	c.images[key] = img
}

func (c *ChatState) Image(key string) (domain.ImagePayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.images[key]
	return img, ok
}

func (c *ChatState) touch(now time.Time) {
	c.mu.Lock()
	c.lastActivity = now
	c.mu.Unlock()
}

func (c *ChatState) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// SessionRegistry maps chat ids to their state. It is safe for concurrent
// use. Idle chats are dropped by a background loop and the least recently
// used chat is evicted once MaxSessions is reached. Chats with a turn in
// flight are never dropped.
type SessionRegistry struct {
	newAssistant AssistantFactory
	machineOpts  []MachineOption
	maxSessions  int
	idleTimeout  time.Duration

	mu    sync.RWMutex
	chats map[int64]*ChatState

	cancelCleanup context.CancelFunc
	cleanupDone   chan struct{}
}

func NewSessionRegistry(factory AssistantFactory, opts ...MachineOption) *SessionRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &SessionRegistry{
		newAssistant:  factory,
		machineOpts:   opts,
		maxSessions:   config.MaxSessions,
		idleTimeout:   config.SessionInactivityTimeout,
		chats:         make(map[int64]*ChatState),
		cancelCleanup: cancel,
		cleanupDone:   make(chan struct{}),
	}
	go r.cleanupLoop(ctx, config.SessionCleanupInterval)
	return r
}

// GetOrCreate returns the state for chatID, creating it on first use.
func (r *SessionRegistry) GetOrCreate(chatID int64) *ChatState {
	now := time.Now()

	r.mu.RLock()
	if st, ok := r.chats[chatID]; ok {
		r.mu.RUnlock()
		st.touch(now)
		return st
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have created it while we waited.
	if st, ok := r.chats[chatID]; ok {
		st.touch(now)
		return st
	}

	if len(r.chats) >= r.maxSessions {
		r.evictLRU()
	}

	st := &ChatState{
		Machine:      NewSessionMachine(r.newAssistant(), r.machineOpts...),
		images:       make(map[string]domain.ImagePayload),
		lastActivity: now,
	}
	r.chats[chatID] = st
	return st
}

func (r *SessionRegistry) Get(chatID int64) *ChatState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chats[chatID]
}

func (r *SessionRegistry) Delete(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chats, chatID)
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}

// Shutdown stops the cleanup loop and waits for it.
func (r *SessionRegistry) Shutdown() {
	if r.cancelCleanup != nil {
		r.cancelCleanup()
		<-r.cleanupDone
	}
}

func (r *SessionRegistry) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer close(r.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanupIdle(time.Now())
		}
	}
}

func (r *SessionRegistry) cleanupIdle(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for chatID, st := range r.chats {
		if st.Machine.Busy() {
			continue
		}
		if now.Sub(st.idleSince()) > r.idleTimeout {
			delete(r.chats, chatID)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("cleaned up idle chats", "removed", removed, "total", len(r.chats))
	}
	return removed
}

// evictLRU must be called with r.mu held for writing.
func (r *SessionRegistry) evictLRU() {
	var (
		oldestID   int64
		oldestTime time.Time
		found      bool
	)
	for chatID, st := range r.chats {
		if st.Machine.Busy() {
			continue
		}
		idle := st.idleSince()
		if !found || idle.Before(oldestTime) {
			oldestID, oldestTime, found = chatID, idle, true
		}
	}
	if found {
		delete(r.chats, oldestID)
		slog.Info("evicted least recently used chat", "chat_id", oldestID, "idle", time.Since(oldestTime))
	}
}
