package service

import (
	"fmt"
	"time"

	"github.com/set-night/wondercam/internal/config"
	"github.com/set-night/wondercam/internal/domain"
)

const defaultGeneratedMime = "image/png"

// MaybePromote adopts a generated image as the session photo when the
// session has none. It never replaces an existing photo.
func MaybePromote(s domain.Session, result StreamResult, now time.Time) (domain.Session, bool) {
	if s.Photo != nil || !result.HasImage || result.Image.Data == "" {
		return s, false
	}
	return s.WithPhoto(PromotedPhoto(result.Image, now)), true
}

// PromotedPhoto builds the canonical photo for a generated image, using the
// reported size when the backend supplied one.
func PromotedPhoto(img domain.ImagePayload, now time.Time) domain.Photo {
	w, h := img.Width, img.Height
	if w <= 0 || h <= 0 {
		w, h = config.DefaultGeneratedDimension, config.DefaultGeneratedDimension
	}
	mime := img.MimeType
	if mime == "" {
		mime = defaultGeneratedMime
	}
	return domain.NewPhoto(
		fmt.Sprintf("generated_%d", now.UnixMilli()),
		img.Data,
		mime,
		domain.NewDimensions(w, h),
		now,
	)
}
