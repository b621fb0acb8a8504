package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFileServer serves getFile and the download of a single file.
func newFileServer(t *testing.T, content string) *bot.Bot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			fmt.Fprint(w, `{"ok":true,"result":{"file_id":"f1","file_unique_id":"u1","file_path":"photos/p.jpg"}}`)
		case strings.HasSuffix(r.URL.Path, "/photos/p.jpg"):
			fmt.Fprint(w, content)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	b, err := bot.New("123:test", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	return b
}

func TestDownloadFileWithinLimit(t *testing.T) {
	b := newFileServer(t, "abcd")

	data, path, err := downloadFile(context.Background(), b, "f1", 4)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))
	assert.Equal(t, "photos/p.jpg", path)
}

func TestDownloadFileRejectsOversizedFile(t *testing.T) {
	b := newFileServer(t, "abcde")

	data, _, err := downloadFile(context.Background(), b, "f1", 4)
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Nil(t, data)
}

func TestDownloadBase64DetectsMime(t *testing.T) {
	png := "\x89PNG\r\n\x1a\n0000"
	b := newFileServer(t, png)

	encoded, mime, err := DownloadBase64(context.Background(), b, "f1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, "iVBORw0KGgowMDAw", encoded)
}
