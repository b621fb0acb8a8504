package domain

// Viewport is a cropped or zoomed render of the original photo.
type Viewport struct {
	DataURL string
	Width   int
	Height  int
}

// ViewingContext describes what the user is looking at when sending a turn.
// IsInitialPhoto selects the session photo; otherwise ImageKey and
// ImageData identify a previously generated image.
type ViewingContext struct {
	IsInitialPhoto bool
	ImageKey       string
	ImageData      string
	Viewport       *Viewport
}
