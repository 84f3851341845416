package callnotes

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/callnotes/internal/infra/llm/chatgpt"
)

// Transcriber converts audio into recognized speech segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) ([]Segment, error)
}

// ChatClient is the remote chat completion transport.
type ChatClient interface {
	HasCredentials() bool
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// Summarizer turns one chunk of transcript into one free-form note.
type Summarizer interface {
	// Ready fails with a configuration error when no credential is available.
	Ready() error
	Summarize(ctx context.Context, chunk string) (string, error)
}

// TokenCounter estimates the prompt size of a chunk.
type TokenCounter interface {
	Count(text string) int
}

// SessionStore keeps sessions for a bounded time.
type SessionStore interface {
	Save(ctx context.Context, session Session, ttl time.Duration) error
	Get(ctx context.Context, id uuid.UUID) (Session, bool, error)
}

// ObjectStorage stages uploaded audio between submission and processing.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}

// JobQueue enqueues background processing.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
}
