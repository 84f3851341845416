package callnotes

import (
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/callnotes/pkg/metrics"
)

// NoteSeparator joins chunk summaries into the final call note.
const NoteSeparator = "\n\n---\n\n"

// DefaultMaxWords bounds a chunk when no positive limit is configured.
const DefaultMaxWords = 1000

// Config controls the call processing service.
type Config struct {
	MaxAudioBytes int64
	SessionTTL    time.Duration
}

// SummarizerConfig drives the chat request built for every chunk.
type SummarizerConfig struct {
	Model        string
	Temperature  float32
	SystemPrompt string
	Instructions string
}

// AssemblerConfig controls chunking and fan-out.
type AssemblerConfig struct {
	MaxWords    int
	Concurrency int
}

// Audio is one uploaded recording.
type Audio struct {
	Filename string
	MimeType string
	Data     []byte
}

// Segment is a piece of recognized speech returned by a transcriber.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
}

// ChunkStat describes one chunk that went through summarization.
type ChunkStat struct {
	Index  int `json:"index"`
	Words  int `json:"words"`
	Tokens int `json:"tokens"`
}

// Notes is the assembled call note plus per-chunk bookkeeping.
type Notes struct {
	Text       string
	Chunks     []ChunkStat
	TokenUsage metrics.TokenUsage
}

// SessionStatus tracks pipeline progress for one call.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

// Session holds the artifacts of one upload-transcribe-summarize cycle until its TTL expires.
type Session struct {
	ID         uuid.UUID           `json:"id"`
	Status     SessionStatus       `json:"status"`
	Filename   string              `json:"filename,omitempty"`
	MimeType   string              `json:"mimeType,omitempty"`
	AudioKey   string              `json:"audioKey,omitempty"`
	Transcript string              `json:"transcript"`
	Notes      string              `json:"notes"`
	Chunks     []ChunkStat         `json:"chunks,omitempty"`
	TokenUsage *metrics.TokenUsage `json:"tokenUsage,omitempty"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// ArtifactKind names a downloadable session output.
type ArtifactKind string

const (
	ArtifactTranscript ArtifactKind = "transcript"
	ArtifactNotes      ArtifactKind = "notes"
)

// Artifact is a plain text download.
type Artifact struct {
	Filename    string
	ContentType string
	Content     []byte
}
