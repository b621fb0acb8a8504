package service

import (
	"errors"
	"testing"
	"time"

	"github.com/set-night/wondercam/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *PhotoResolver {
	r := NewPhotoResolver()
	r.now = func() time.Time { return fixedNow }
	r.newSuffix = func() string { return "abc123" }
	return r
}

func TestResolveWithoutSignalUsesSessionPhoto(t *testing.T) {
	r := newTestResolver()
	photo := testPhoto("orig")

	assert.Same(t, &photo, r.Resolve(nil, &photo))
	assert.Same(t, &photo, r.Resolve(staticSource{}, &photo))
	assert.Nil(t, r.Resolve(staticSource{}, nil))
}

func TestResolveViewingOriginalWithoutViewport(t *testing.T) {
	r := newTestResolver()
	photo := testPhoto("orig")

	got := r.Resolve(staticSource{vc: &domain.ViewingContext{IsInitialPhoto: true}}, &photo)

	assert.Same(t, &photo, got)
}

func TestResolveCroppedViewport(t *testing.T) {
	r := newTestResolver()
	photo := testPhoto("orig")
	src := staticSource{vc: &domain.ViewingContext{
		IsInitialPhoto: true,
		Viewport: &domain.Viewport{
			DataURL: "data:image/jpeg;base64,Q1JPUA==",
			Width:   400,
			Height:  300,
		},
	}}

	got := r.Resolve(src, &photo)

	require.NotNil(t, got)
	assert.NotEqual(t, photo.ID, got.ID)
	assert.Equal(t, "orig_view_abc123", got.ID)
	assert.InDelta(t, 400.0/300.0, got.Dimensions.AspectRatio, 1e-9)
	assert.Equal(t, 400, got.Dimensions.Width)
	assert.Equal(t, 300, got.Dimensions.Height)
	assert.Equal(t, "Q1JPUA==", got.PrimaryImage)
	assert.Equal(t, "Q1JPUA==", got.CompressedImage)
	assert.Equal(t, "image/jpeg", got.MimeType)
	assert.True(t, got.IsComplete())

	// The session photo itself is untouched.
	assert.Equal(t, "orig", photo.ID)
	assert.Equal(t, 800, photo.Dimensions.Width)
}

func TestResolveInvalidViewportFallsBack(t *testing.T) {
	r := newTestResolver()
	photo := testPhoto("orig")
	src := staticSource{vc: &domain.ViewingContext{
		IsInitialPhoto: true,
		Viewport:       &domain.Viewport{DataURL: "data:image/png;base64,AAAA", Width: 0, Height: 300},
	}}

	assert.Same(t, &photo, r.Resolve(src, &photo))
}

func TestResolveGeneratedImage(t *testing.T) {
	r := newTestResolver()
	photo := testPhoto("orig")
	src := staticSource{vc: &domain.ViewingContext{
		ImageKey:  "msg-42",
		ImageData: "R0VORVJBVEVE",
	}}

	got := r.Resolve(src, &photo)

	require.NotNil(t, got)
	assert.Equal(t, "msg-42", got.ID)
	assert.Equal(t, "R0VORVJBVEVE", got.PrimaryImage)
	assert.Equal(t, 1024, got.Dimensions.Width)
	assert.Equal(t, 1024, got.Dimensions.Height)
	assert.Equal(t, 1.0, got.Dimensions.AspectRatio)
	assert.Equal(t, "image/png", got.MimeType)
	assert.True(t, got.IsComplete())
}

func TestResolveGeneratedWithoutSessionPhoto(t *testing.T) {
	r := newTestResolver()
	src := staticSource{vc: &domain.ViewingContext{ImageKey: "k", ImageData: "AAAA"}}

	got := r.Resolve(src, nil)

	require.NotNil(t, got)
	assert.Equal(t, "k", got.ID)
}

func TestResolveGeneratedWithoutDataFallsBack(t *testing.T) {
	r := newTestResolver()
	photo := testPhoto("orig")
	src := staticSource{vc: &domain.ViewingContext{ImageKey: "k"}}

	assert.Same(t, &photo, r.Resolve(src, &photo))
	assert.Nil(t, r.Resolve(src, nil))
}

func TestResolveSourceErrorFallsBack(t *testing.T) {
	r := newTestResolver()
	photo := testPhoto("orig")

	got := r.Resolve(staticSource{err: errors.New("window gone")}, &photo)

	assert.Same(t, &photo, got)
}

func TestResolveSourcePanicFallsBack(t *testing.T) {
	r := newTestResolver()
	photo := testPhoto("orig")

	var got *domain.Photo
	assert.NotPanics(t, func() {
		got = r.Resolve(panickingSource{}, &photo)
	})
	assert.Same(t, &photo, got)
}

func TestViewingContextHolderIsOneShot(t *testing.T) {
	h := &ViewingContextHolder{}
	h.Set(domain.ViewingContext{IsInitialPhoto: true})

	first, err := h.ViewingContext()
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.IsInitialPhoto)

	second, err := h.ViewingContext()
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestViewingContextHolderClear(t *testing.T) {
	h := &ViewingContextHolder{}
	h.Set(domain.ViewingContext{ImageKey: "k", ImageData: "AAAA"})
	h.Clear()

	vc, err := h.ViewingContext()
	require.NoError(t, err)
	assert.Nil(t, vc)
}
