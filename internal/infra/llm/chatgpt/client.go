package chatgpt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 60 * time.Second
)

// Message mirrors the OpenAI chat message structure.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the payload sent to an OpenAI-compatible chat completion API.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
}

// Choice is a single completion alternative.
type Choice struct {
	Message Message `json:"message"`
}

// ChatCompletionResponse captures the fields of the response we consume.
type ChatCompletionResponse struct {
	Choices []Choice `json:"choices"`
}

// Options tune the HTTP client. Zero values select the defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// AppName and Referer are forwarded as X-Title and HTTP-Referer, which OpenRouter uses for attribution.
	AppName string
	Referer string
}

// Client performs HTTP requests to an OpenAI-compatible chat completion endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	appName    string
	referer    string
	httpClient *http.Client
}

// NewClient constructs a client. An empty apiKey is accepted so the missing credential
// surfaces on first use instead of at process start.
func NewClient(apiKey string, opts Options) *Client {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		appName: opts.AppName,
		referer: opts.Referer,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// HasCredentials reports whether an API key is configured.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateChatCompletion performs one synchronous chat completion call.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	body, err := c.doRequest(ctx, req)
	if err != nil {
		return ChatCompletionResponse{}, err
	}
	return decodeCompletion(body)
}

// wireCompletion keeps pointers so absent or null fields are told apart from empty ones.
type wireCompletion struct {
	Choices []struct {
		Message *struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// decodeCompletion rejects bodies without choices[i].message.content.
func decodeCompletion(body []byte) (ChatCompletionResponse, error) {
	var wire wireCompletion
	if err := json.Unmarshal(body, &wire); err != nil {
		return ChatCompletionResponse{}, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(wire.Choices) == 0 {
		return ChatCompletionResponse{}, errors.New("decode chat completion: response has no choices")
	}
	out := ChatCompletionResponse{Choices: make([]Choice, 0, len(wire.Choices))}
	for i, choice := range wire.Choices {
		if choice.Message == nil {
			return ChatCompletionResponse{}, fmt.Errorf("decode chat completion: choices[%d].message is missing", i)
		}
		if choice.Message.Content == nil {
			return ChatCompletionResponse{}, fmt.Errorf("decode chat completion: choices[%d].message.content is missing", i)
		}
		out.Choices = append(out.Choices, Choice{Message: Message{Role: choice.Message.Role, Content: *choice.Message.Content}})
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, req ChatCompletionRequest) ([]byte, error) {
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("chat completion failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) newHTTPRequest(ctx context.Context, req ChatCompletionRequest) (*http.Request, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat completion request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.appName != "" {
		httpReq.Header.Set("X-Title", c.appName)
	}
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	return httpReq, nil
}
