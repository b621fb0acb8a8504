package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/wondercam/internal/config"
	"github.com/set-night/wondercam/internal/domain"
)

// ViewingSource supplies what the user is currently looking at. A nil
// context with a nil error means no signal.
type ViewingSource interface {
	ViewingContext() (*domain.ViewingContext, error)
}

// ViewingContextHolder is a one-shot ViewingSource: a context stored with
// Set is returned by the next read and then cleared. Each turn gets its own
// holder so concurrent updates in one chat never see each other's context.
type ViewingContextHolder struct {
	mu  sync.Mutex
	ctx *domain.ViewingContext
}

// NewViewingContext returns a holder already carrying vc.
func NewViewingContext(vc domain.ViewingContext) *ViewingContextHolder {
	return &ViewingContextHolder{ctx: &vc}
}

func (h *ViewingContextHolder) Set(vc domain.ViewingContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx = &vc
}

func (h *ViewingContextHolder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx = nil
}

func (h *ViewingContextHolder) ViewingContext() (*domain.ViewingContext, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	vc := h.ctx
	h.ctx = nil
	return vc, nil
}

// PhotoResolver decides which image is the subject of the next turn.
type PhotoResolver struct {
	now       func() time.Time
	newSuffix func() string
	dimension int
}

func NewPhotoResolver() *PhotoResolver {
	return &PhotoResolver{
		now:       time.Now,
		newSuffix: func() string { return uuid.NewString()[:8] },
		dimension: config.DefaultGeneratedDimension,
	}
}

// Resolve returns the effective photo for a turn, or nil when the turn has
// no subject image. Photos synthesized from the viewing context are
// ephemeral: they are never written back into the session. Failures while
// reading the source fall back to sessionPhoto.
func (r *PhotoResolver) Resolve(src ViewingSource, sessionPhoto *domain.Photo) (photo *domain.Photo) {
	if src == nil {
		return sessionPhoto
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("viewing context read panicked, using session photo", "panic", rec)
			photo = sessionPhoto
		}
	}()

	vc, err := src.ViewingContext()
	if err != nil {
		slog.Warn("read viewing context, using session photo", "error", err)
		return sessionPhoto
	}
	if vc == nil {
		return sessionPhoto
	}

	var resolved *domain.Photo
	if vc.IsInitialPhoto {
		resolved = r.fromViewport(vc.Viewport, sessionPhoto)
	} else {
		resolved = r.fromGenerated(vc)
	}

	if resolved == nil || !resolved.IsComplete() {
		return sessionPhoto
	}
	return resolved
}

func (r *PhotoResolver) fromViewport(vp *domain.Viewport, sessionPhoto *domain.Photo) *domain.Photo {
	if vp == nil || vp.DataURL == "" || vp.Width <= 0 || vp.Height <= 0 {
		return sessionPhoto
	}

	base := "viewport"
	mime := ""
	if sessionPhoto != nil {
		base = sessionPhoto.ID
		mime = sessionPhoto.MimeType
	}

	p := domain.NewPhoto(
		fmt.Sprintf("%s_view_%s", base, r.newSuffix()),
		vp.DataURL,
		"",
		domain.NewDimensions(vp.Width, vp.Height),
		r.now(),
	)
	if p.MimeType == "" {
		p.MimeType = mime
	}
	return &p
}

func (r *PhotoResolver) fromGenerated(vc *domain.ViewingContext) *domain.Photo {
	if vc.ImageData == "" {
		return nil
	}
	id := vc.ImageKey
	if id == "" {
		id = fmt.Sprintf("generated_%s", r.newSuffix())
	}
	p := domain.NewPhoto(id, vc.ImageData, "", domain.NewDimensions(r.dimension, r.dimension), r.now())
	if p.MimeType == "" {
		p.MimeType = defaultGeneratedMime
	}
	return &p
}
