package handler

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/config"
	"github.com/set-night/wondercam/internal/domain"
	"github.com/set-night/wondercam/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentAssistant answers every turn with an empty stream.
type silentAssistant struct{}

type emptyStream struct{}

func (emptyStream) Next(context.Context) (domain.Chunk, error) {
	return domain.Chunk{}, io.EOF
}

func (emptyStream) Close() error { return nil }

func (silentAssistant) AnalyzePhoto(context.Context, domain.Photo, string, string) (service.ResponseStream, error) {
	return emptyStream{}, nil
}

func (silentAssistant) GenerateImageFromPrompt(context.Context, string, string) (service.ResponseStream, error) {
	return emptyStream{}, nil
}

func (silentAssistant) ContinueConversation(context.Context, []domain.Message, string, string, *domain.Photo) (service.ResponseStream, error) {
	return emptyStream{}, nil
}

func (silentAssistant) ClearConversationHistory() {}

func newChat(t *testing.T) *service.ChatState {
	t.Helper()
	r := service.NewSessionRegistry(func() service.Assistant { return silentAssistant{} })
	t.Cleanup(r.Shutdown)
	return r.GetOrCreate(1)
}

func TestViewingFromReply(t *testing.T) {
	chat := newChat(t)
	chat.ResetMessages("10")
	chat.RememberImage("12", domain.ImagePayload{Data: "SU1H", MimeType: "image/webp"})

	_, ok := viewingFromReply(chat, nil)
	assert.False(t, ok)

	vc, ok := viewingFromReply(chat, &models.Message{ID: 10})
	require.True(t, ok)
	assert.True(t, vc.IsInitialPhoto)

	vc, ok = viewingFromReply(chat, &models.Message{ID: 12})
	require.True(t, ok)
	assert.False(t, vc.IsInitialPhoto)
	assert.Equal(t, "generated_12", vc.ImageKey)
	assert.Equal(t, "data:image/webp;base64,SU1H", vc.ImageData)

	_, ok = viewingFromReply(chat, &models.Message{ID: 11})
	assert.False(t, ok)
}

func TestReplyToGeneratedImageBecomesSubject(t *testing.T) {
	chat := newChat(t)
	chat.ResetMessages("10")
	chat.RememberImage("12", domain.ImagePayload{Data: "SU1H"})
	chat.Machine.StartWithPhoto(domain.NewPhoto("orig", "T1JJRw==", "image/jpeg", domain.NewDimensions(4, 3), time.Now()), "en")

	view := viewingSource(chat, &models.Message{ID: 12})
	require.NotNil(t, view)

	res, err := chat.Machine.Send(context.Background(), "make it brighter", view)
	require.NoError(t, err)

	require.NotNil(t, res.Subject)
	assert.Equal(t, "generated_12", res.Subject.ID)
	assert.Equal(t, "image/png", res.Subject.MimeType)
	assert.Equal(t, config.DefaultGeneratedDimension, res.Subject.Dimensions.Width)
}

func TestRepliesKeepTheirOwnSubject(t *testing.T) {
	chat := newChat(t)
	chat.ResetMessages("10")
	chat.RememberImage("12", domain.ImagePayload{Data: "QUFB"})
	chat.RememberImage("13", domain.ImagePayload{Data: "QkJC"})
	chat.Machine.StartWithPhoto(domain.NewPhoto("orig", "T1JJRw==", "image/jpeg", domain.NewDimensions(4, 3), time.Now()), "en")

	// Both updates arrive before either turn resolves its subject.
	first := viewingSource(chat, &models.Message{ID: 12})
	second := viewingSource(chat, &models.Message{ID: 13})

	res, err := chat.Machine.Send(context.Background(), "make image A blue", first)
	require.NoError(t, err)
	require.NotNil(t, res.Subject)
	assert.Equal(t, "generated_12", res.Subject.ID)

	res, err = chat.Machine.Send(context.Background(), "make image B red", second)
	require.NoError(t, err)
	require.NotNil(t, res.Subject)
	assert.Equal(t, "generated_13", res.Subject.ID)

	// A plain message has no viewing context and uses the session photo.
	assert.Nil(t, viewingSource(chat, nil))
	res, err = chat.Machine.Send(context.Background(), "and the original?", viewingSource(chat, nil))
	require.NoError(t, err)
	require.NotNil(t, res.Subject)
	assert.Equal(t, "orig", res.Subject.ID)
}

func TestBuildPhoto(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	size := models.PhotoSize{FileID: "f", Width: 1600, Height: 1200}

	p := buildPhoto("tg_1_2", "UFJJTUFSWQ==", "Q09NUA==", "image/jpeg", size, now)

	assert.Equal(t, "tg_1_2", p.ID)
	assert.Equal(t, "UFJJTUFSWQ==", p.PrimaryImage)
	assert.Equal(t, "Q09NUA==", p.CompressedImage)
	assert.Equal(t, "Q09NUA==", p.UploadImage())
	assert.InDelta(t, 4.0/3.0, p.Dimensions.AspectRatio, 1e-9)
	assert.True(t, p.IsComplete())
}

func TestDataURLDefaultsToPNG(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AAAA", dataURL(domain.ImagePayload{Data: "AAAA"}))
}

type editRecorder struct {
	mu    sync.Mutex
	edits []string
}

func (r *editRecorder) edit(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, text)
	return nil
}

func (r *editRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.edits...)
}

func streamingSession(id, text string) domain.Session {
	return domain.NewSession(id, nil, "en", time.Now()).
		WithMessage(domain.Message{ID: "a", Role: domain.RoleAssistant, Content: text, Streaming: true})
}

func TestPresenterShowsLatestText(t *testing.T) {
	rec := &editRecorder{}
	p := newStreamPresenter("s1", 20*time.Millisecond, rec.edit)
	stop := p.Start(context.Background())
	defer stop()

	p.Observe(streamingSession("s1", "Hel"))
	p.Observe(streamingSession("s1", "Hello"))
	p.Observe(streamingSession("s1", "Hello there"))

	require.Eventually(t, func() bool {
		edits := rec.snapshot()
		return len(edits) > 0 && edits[len(edits)-1] == "Hello there"
	}, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, len(rec.snapshot()), 3)
}

func TestPresenterIgnoresOtherSessionsAndSettledMessages(t *testing.T) {
	rec := &editRecorder{}
	p := newStreamPresenter("s1", time.Millisecond, rec.edit)
	stop := p.Start(context.Background())

	p.Observe(streamingSession("old", "stale"))
	p.Observe(domain.NewSession("s1", nil, "en", time.Now()).
		WithMessage(domain.Message{ID: "a", Role: domain.RoleAssistant, Content: "done"}))
	p.Observe(streamingSession("s1", ""))

	time.Sleep(20 * time.Millisecond)
	stop()

	assert.Empty(t, rec.snapshot())
}

func TestPresenterStopIsPrompt(t *testing.T) {
	rec := &editRecorder{}
	p := newStreamPresenter("s1", time.Hour, rec.edit)
	stop := p.Start(context.Background())

	p.Observe(streamingSession("s1", "first"))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	p.Observe(streamingSession("s1", "second"))

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop blocked on the edit interval")
	}
	assert.Equal(t, []string{"first"}, rec.snapshot())
}

func TestParseGrant(t *testing.T) {
	id, amount, err := parseGrant("/grant 12345 7.5")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), id)
	assert.Equal(t, "7.5", amount.String())

	for _, bad := range []string{"/grant", "/grant abc 1", "/grant 1 -3", "/grant 1 zero", "/grant 1 2 3"} {
		_, _, err := parseGrant(bad)
		assert.Error(t, err, bad)
	}
}
