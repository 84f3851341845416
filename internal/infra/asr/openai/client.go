package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
	"github.com/yanqian/callnotes/pkg/metrics"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "whisper-1"
	backendName    = "openai"
)

// Options configures the transcription endpoint.
type Options struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string
	// Timeout of zero leaves the request bounded only by the caller's context.
	Timeout time.Duration
}

// Client sends recordings to an OpenAI-compatible /audio/transcriptions endpoint.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
}

type transcriptionResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// NewClient builds a transcription client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = defaultModel
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger.With("component", "asr.openai"),
	}
}

// Transcribe uploads the recording and returns its segments in order.
func (c *Client) Transcribe(ctx context.Context, audio callnotes.Audio) (segments []callnotes.Segment, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveTranscription(backendName, time.Since(start), err)
	}()

	body, contentType, err := c.encodeForm(audio)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("transcription failed: status=%d body=%s", resp.StatusCode, string(payload))
	}

	var decoded transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode transcription: %w", err)
	}

	segments = make([]callnotes.Segment, 0, len(decoded.Segments))
	for _, seg := range decoded.Segments {
		segments = append(segments, callnotes.Segment{Text: seg.Text, Start: seg.Start, End: seg.End})
	}
	// Some compatible servers ignore verbose_json and only return text.
	if len(segments) == 0 && strings.TrimSpace(decoded.Text) != "" {
		segments = append(segments, callnotes.Segment{Text: decoded.Text})
	}
	c.logger.Debug("transcription received", "segments", len(segments), "latency_ms", time.Since(start).Milliseconds())
	return segments, nil
}

func (c *Client) encodeForm(audio callnotes.Audio) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	filename := audio.Filename
	if filename == "" {
		filename = "audio"
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("encode audio: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("encode audio: %w", err)
	}

	fields := [][2]string{
		{"model", c.opts.Model},
		{"response_format", "verbose_json"},
	}
	if c.opts.Language != "" {
		fields = append(fields, [2]string{"language", c.opts.Language})
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("encode %s: %w", field[0], err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", fmt.Errorf("encode form: %w", err)
	}
	return &buf, form.FormDataContentType(), nil
}

var _ callnotes.Transcriber = (*Client)(nil)
