package domain

import "fmt"

type ChunkKind uint8

const (
	ChunkText ChunkKind = iota + 1
	ChunkImage
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkText:
		return "text"
	case ChunkImage:
		return "image"
	default:
		return fmt.Sprintf("chunk(%d)", uint8(k))
	}
}

// ImagePayload is a generated image. Width and Height are zero when the
// backend did not report them.
type ImagePayload struct {
	Data     string // base64
	MimeType string
	Width    int
	Height   int
}

// Chunk is one item of a response stream: either a text delta or an image.
// Only the field matching Kind is meaningful.
type Chunk struct {
	Kind  ChunkKind
	Text  string
	Image ImagePayload
}

func TextChunk(text string) Chunk {
	return Chunk{Kind: ChunkText, Text: text}
}

func ImageChunk(img ImagePayload) Chunk {
	return Chunk{Kind: ChunkImage, Image: img}
}
