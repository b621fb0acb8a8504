package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/wondercam/internal/config"
)

// maxDownloadSize caps photo downloads; Telegram bots may fetch up to 20 MB.
const maxDownloadSize = 20 << 20

var ErrFileTooLarge = errors.New("file too large")

// DownloadFile downloads a file from Telegram by file ID. Files larger than
// 20 MB are rejected with ErrFileTooLarge rather than truncated.
func DownloadFile(ctx context.Context, b *bot.Bot, fileID string) ([]byte, string, error) {
	return downloadFile(ctx, b, fileID, maxDownloadSize)
}

func downloadFile(ctx context.Context, b *bot.Bot, fileID string, limit int64) ([]byte, string, error) {
	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}

	fileURL := b.FileDownloadLink(file)

	req, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read file data: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("download %s: %w (over %d bytes)", file.FilePath, ErrFileTooLarge, limit)
	}

	return data, file.FilePath, nil
}

// DownloadBase64 downloads a file and returns it base64-encoded with its
// detected mime type.
func DownloadBase64(ctx context.Context, b *bot.Bot, fileID string) (string, string, error) {
	data, _, err := DownloadFile(ctx, b, fileID)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(data), http.DetectContentType(data), nil
}

// PhotoRenditions picks the largest size as the primary rendition and the
// largest size whose long edge fits CompressedMaxEdge as the compressed one.
func PhotoRenditions(sizes []models.PhotoSize) (primary, compressed models.PhotoSize, ok bool) {
	if len(sizes) == 0 {
		return models.PhotoSize{}, models.PhotoSize{}, false
	}

	primary = sizes[0]
	found := false
	for _, s := range sizes {
		if s.Width*s.Height > primary.Width*primary.Height {
			primary = s
		}
		if max(s.Width, s.Height) > config.CompressedMaxEdge {
			continue
		}
		if !found || s.Width*s.Height > compressed.Width*compressed.Height {
			compressed, found = s, true
		}
	}
	if !found {
		compressed = primary
	}
	return primary, compressed, true
}
