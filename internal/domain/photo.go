package domain

import (
	"strings"
	"time"
)

// Base64 expands 3 bytes into 4 characters.
const base64Expansion = 0.75

type Dimensions struct {
	Width       int
	Height      int
	AspectRatio float64
}

func NewDimensions(width, height int) Dimensions {
	d := Dimensions{Width: width, Height: height}
	if height > 0 {
		d.AspectRatio = float64(width) / float64(height)
	}
	return d
}

// Photo is an image the conversation can be grounded on. Image fields hold
// base64 payloads without a data-URL prefix. PrimaryImage and CompressedImage
// may be identical when no separate compressed rendition exists.
type Photo struct {
	ID              string
	PrimaryImage    string
	CompressedImage string
	MimeType        string
	CapturedAt      time.Time
	Dimensions      Dimensions
	ApproxByteSize  int
}

// NewPhoto builds a photo whose primary and compressed renditions are the same payload.
func NewPhoto(id, image, mimeType string, dims Dimensions, capturedAt time.Time) Photo {
	image, detected := StripDataURL(image)
	if mimeType == "" {
		mimeType = detected
	}
	return Photo{
		ID:              id,
		PrimaryImage:    image,
		CompressedImage: image,
		MimeType:        mimeType,
		CapturedAt:      capturedAt,
		Dimensions:      dims,
		ApproxByteSize:  ApproxByteSize(image),
	}
}

// UploadImage returns the rendition sent to the AI backend.
func (p *Photo) UploadImage() string {
	if p.CompressedImage != "" {
		return p.CompressedImage
	}
	return p.PrimaryImage
}

// IsComplete reports whether every field a turn relies on is populated.
func (p *Photo) IsComplete() bool {
	return p != nil &&
		p.ID != "" &&
		p.PrimaryImage != "" &&
		p.CompressedImage != "" &&
		p.Dimensions.Width > 0 &&
		p.Dimensions.Height > 0 &&
		!p.CapturedAt.IsZero()
}

// ApproxByteSize estimates the decoded size of a base64 payload.
func ApproxByteSize(encoded string) int {
	return int(float64(len(encoded)) * base64Expansion)
}

// StripDataURL removes a "data:<mime>;base64," prefix and returns the bare
// payload with the mime type it declared. Payloads without a prefix are
// returned unchanged with an empty mime type.
func StripDataURL(s string) (string, string) {
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return s, ""
	}
	mime := strings.TrimPrefix(header, "data:")
	mime, _, _ = strings.Cut(mime, ";")
	return payload, mime
}
