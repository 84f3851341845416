package callnotes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/callnotes/internal/infra/llm/chatgpt"
	apperrors "github.com/yanqian/callnotes/pkg/errors"
	"github.com/yanqian/callnotes/pkg/metrics"
)

// DefaultSystemPrompt fixes the assistant persona.
const DefaultSystemPrompt = "You summarize customer service calls."

// DefaultInstructions lists the note aspects requested for every chunk.
const DefaultInstructions = "You are an expert call summarization assistant. " +
	"Given the transcript excerpt, produce:\n" +
	"• Call purpose / reason\n" +
	"• Action items / next steps\n" +
	"• Customer sentiment (positive/neutral/negative)\n" +
	"• Any specific account or coverage details discussed"

const defaultTemperature = 0.2

type chatSummarizer struct {
	cfg    SummarizerConfig
	client ChatClient
	logger *slog.Logger
}

// NewSummarizer builds the chunk summarizer on top of a chat completion transport.
func NewSummarizer(cfg SummarizerConfig, client ChatClient, logger *slog.Logger) Summarizer {
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if strings.TrimSpace(cfg.Instructions) == "" {
		cfg.Instructions = DefaultInstructions
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = defaultTemperature
	}
	return &chatSummarizer{cfg: cfg, client: client, logger: logger.With("component", "callnotes.summarizer")}
}

func (s *chatSummarizer) Ready() error {
	if s.client == nil || !s.client.HasCredentials() {
		return apperrors.Wrap(apperrors.CodeConfiguration, "llm api key is not configured (set LLM_API_KEY or OPENROUTER_API_KEY)", nil)
	}
	return nil
}

func (s *chatSummarizer) Summarize(ctx context.Context, chunk string) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    s.buildMessages(chunk),
		Temperature: s.cfg.Temperature,
	})
	if err == nil && len(resp.Choices) == 0 {
		err = apperrors.Wrap(apperrors.CodeRemoteService, "chat completion returned no choices", nil)
	}
	metrics.ObserveChunkSummary(s.cfg.Model, time.Since(start), err)
	if err != nil {
		if apperrors.CodeOf(err) != "" {
			return "", err
		}
		return "", apperrors.Wrap(apperrors.CodeRemoteService, "chat completion request failed", err)
	}

	content := resp.Choices[0].Message.Content
	s.logger.Debug("chunk summary received", "chunk_words", countWords(chunk), "summary_chars", len(content))
	return content, nil
}

func (s *chatSummarizer) buildMessages(chunk string) []chatgpt.Message {
	userContent := fmt.Sprintf("%s\n\nTranscript:\n\"\"\"\n%s\n\"\"\"", s.cfg.Instructions, chunk)
	return []chatgpt.Message{
		{Role: "system", Content: s.cfg.SystemPrompt},
		{Role: "user", Content: userContent},
	}
}
