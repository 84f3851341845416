package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yanqian/callnotes/internal/infra/llm/chatgpt"
)

const defaultModel = "gemini-2.5-flash"

// Client adapts the Gemini API to the chat completion shape used by the summarizer.
type Client struct {
	client *genai.Client
}

// NewClient builds a Gemini-backed chat client. An empty apiKey yields a client that
// reports no credentials and refuses to send requests.
func NewClient(ctx context.Context, apiKey string, timeout time.Duration) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &Client{}, nil
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: client}, nil
}

// HasCredentials reports whether an API key was supplied.
func (c *Client) HasCredentials() bool {
	return c.client != nil
}

// CreateChatCompletion sends system messages as the system instruction and the rest as user content.
func (c *Client) CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error) {
	if c.client == nil {
		return chatgpt.ChatCompletionResponse{}, errors.New("gemini api key cannot be empty")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = defaultModel
	}
	system, contents := splitMessages(req.Messages)
	temperature := req.Temperature
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return chatgpt.ChatCompletionResponse{}, fmt.Errorf("generate content: %w", err)
	}
	text, ok := responseText(result)
	if !ok {
		return chatgpt.ChatCompletionResponse{}, errors.New("empty response from gemini")
	}
	return chatgpt.ChatCompletionResponse{
		Choices: []chatgpt.Choice{{Message: chatgpt.Message{Role: "assistant", Content: text}}},
	}, nil
}

func splitMessages(messages []chatgpt.Message) (string, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func responseText(result *genai.GenerateContentResponse) (string, bool) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", false
	}
	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}
