package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/set-night/wondercam/internal/config"
	"github.com/set-night/wondercam/internal/domain"
)

const generatePrompt = "Create an image for this request, then describe it in one or two sentences: %s"

var languageInstructions = map[string]string{
	"zh": "请用中文回答。",
	"es": "Responde en español.",
	"fr": "Répondez en français.",
	"ja": "日本語で答えてください。",
}

// WonderCamService talks to the Gemini-compatible streaming endpoint of
// the WonderCam backend.
type WonderCamService struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewWonderCamService(baseURL, apiKey, model string) *WonderCamService {
	return &WonderCamService{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
}

// NewConversation returns an Assistant with its own backend conversation id.
func (s *WonderCamService) NewConversation() *Conversation {
	return &Conversation{svc: s, id: uuid.NewString()}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string        `json:"role"`
	Parts []contentPart `json:"parts"`
}

type generationConfig struct {
	Temperature        float64  `json:"temperature"`
	TopP               float64  `json:"topP"`
	ResponseModalities []string `json:"responseModalities"`
}

type GenerateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type streamEvent struct {
	Candidates []struct {
		Content struct {
			Parts []contentPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	// Backend-originated error chunks: {"type":"error","content":"..."}
	Type    string          `json:"type,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Conversation is the per-session Assistant. Its id keys the backend's
// conversation memory.
type Conversation struct {
	svc *WonderCamService

	mu sync.Mutex
	id string
}

func (c *Conversation) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// ClearConversationHistory starts a fresh backend conversation.
func (c *Conversation) ClearConversationHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = uuid.NewString()
}

func (c *Conversation) AnalyzePhoto(ctx context.Context, photo domain.Photo, text, language string) (ResponseStream, error) {
	parts := languageParts(language)
	parts = append(parts, contentPart{Text: text}, photoPart(&photo))
	return c.stream(ctx, []content{{Role: "user", Parts: parts}})
}

func (c *Conversation) GenerateImageFromPrompt(ctx context.Context, text, language string) (ResponseStream, error) {
	parts := languageParts(language)
	parts = append(parts, contentPart{Text: fmt.Sprintf(generatePrompt, text)})
	return c.stream(ctx, []content{{Role: "user", Parts: parts}})
}

func (c *Conversation) ContinueConversation(ctx context.Context, history []domain.Message, text, language string, photo *domain.Photo) (ResponseStream, error) {
	contents := historyContents(history)

	parts := languageParts(language)
	parts = append(parts, contentPart{Text: text})
	if photo != nil {
		parts = append(parts, photoPart(photo))
	}
	contents = appendContent(contents, content{Role: "user", Parts: parts})
	return c.stream(ctx, contents)
}

func (c *Conversation) stream(ctx context.Context, contents []content) (ResponseStream, error) {
	payload, err := json.Marshal(GenerateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:        1,
			TopP:               1,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", c.svc.baseURL, c.svc.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-Session-Id", c.ID())
	if c.svc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.svc.apiKey)
	}

	resp, err := c.svc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return nil, &APIError{Kind: APIErrorRateLimited, StatusCode: resp.StatusCode}
		case http.StatusServiceUnavailable:
			return nil, &APIError{Kind: APIErrorUnavailable, StatusCode: resp.StatusCode}
		default:
			return nil, &APIError{Kind: APIErrorStatus, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
	}

	return newSSEStream(resp.Body), nil
}

func languageParts(language string) []contentPart {
	if instruction, ok := languageInstructions[language]; ok {
		return []contentPart{{Text: instruction}}
	}
	return nil
}

func photoPart(p *domain.Photo) contentPart {
	data, mime := domain.StripDataURL(p.UploadImage())
	if mime == "" {
		mime = p.MimeType
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	return contentPart{InlineData: &inlineData{MimeType: mime, Data: data}}
}

// historyContents maps session messages onto backend roles. A failed turn
// is left out whole: its error message, any partial answer and the question
// that was never answered. Empty placeholders carry nothing.
func historyContents(history []domain.Message) []content {
	contents := make([]content, 0, len(history))
	for _, m := range history {
		if m.IsError {
			contents = dropLastTurn(contents)
			continue
		}
		if m.Content == "" {
			continue
		}
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}
		contents = appendContent(contents, content{Role: role, Parts: []contentPart{{Text: m.Content}}})
	}
	return contents
}

// dropLastTurn removes the last user content and everything after it.
func dropLastTurn(contents []content) []content {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == "user" {
			return contents[:i]
		}
	}
	return contents
}

// appendContent keeps roles alternating, as the backend requires, by
// merging c into a trailing content of the same role.
func appendContent(contents []content, c content) []content {
	n := len(contents)
	if n == 0 || contents[n-1].Role != c.Role {
		return append(contents, c)
	}
	merged := contents[n-1]
	merged.Parts = append(append([]contentPart(nil), merged.Parts...), c.Parts...)
	contents[n-1] = merged
	return contents
}

// sseStream decodes a text/event-stream body into chunks.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	pending []domain.Chunk
	done    bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), config.MaxStreamLineSize)
	return &sseStream{body: body, scanner: scanner}
}

func (s *sseStream) Next(ctx context.Context) (domain.Chunk, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return chunk, nil
		}
		if s.done {
			return domain.Chunk{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return domain.Chunk{}, err
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return domain.Chunk{}, fmt.Errorf("read event: %w", err)
			}
			s.done = true
			continue
		}

		data, ok := strings.CutPrefix(s.scanner.Text(), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			s.done = true
			continue
		}

		chunks, err := parseEvent([]byte(data))
		if err != nil {
			return domain.Chunk{}, err
		}
		s.pending = append(s.pending, chunks...)
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

func parseEvent(data []byte) ([]domain.Chunk, error) {
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}

	if ev.Error != nil {
		return nil, &APIError{Kind: APIErrorStream, StatusCode: ev.Error.Code, Message: ev.Error.Message}
	}
	if ev.Type == "error" {
		var msg string
		if err := json.Unmarshal(ev.Content, &msg); err != nil {
			msg = string(ev.Content)
		}
		return nil, &APIError{Kind: APIErrorStream, Message: msg}
	}

	var chunks []domain.Chunk
	for _, cand := range ev.Candidates {
		for _, part := range cand.Content.Parts {
			switch {
			case part.InlineData != nil && strings.HasPrefix(part.InlineData.MimeType, "image/"):
				chunks = append(chunks, domain.ImageChunk(domain.ImagePayload{
					Data:     part.InlineData.Data,
					MimeType: part.InlineData.MimeType,
				}))
			case part.Text != "":
				chunks = append(chunks, domain.TextChunk(part.Text))
			}
		}
	}
	return chunks, nil
}

var _ Assistant = (*Conversation)(nil)
