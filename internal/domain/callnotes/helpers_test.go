package callnotes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/callnotes/internal/infra/llm/chatgpt"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubChatClient struct {
	mu          sync.Mutex
	credentials bool
	respond     func(req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
	requests    []chatgpt.ChatCompletionRequest
}

func (s *stubChatClient) HasCredentials() bool {
	return s.credentials
}

func (s *stubChatClient) CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.respond != nil {
		return s.respond(req)
	}
	return completion("ok"), nil
}

func (s *stubChatClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func completion(content string) chatgpt.ChatCompletionResponse {
	return chatgpt.ChatCompletionResponse{
		Choices: []chatgpt.Choice{{Message: chatgpt.Message{Role: "assistant", Content: content}}},
	}
}

// stubSummarizer records every chunk and answers through summarizeFn.
type stubSummarizer struct {
	mu          sync.Mutex
	readyErr    error
	summarizeFn func(ctx context.Context, chunk string) (string, error)
	chunks      []string
}

func (s *stubSummarizer) Ready() error {
	return s.readyErr
}

func (s *stubSummarizer) Summarize(ctx context.Context, chunk string) (string, error) {
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.mu.Unlock()
	if s.summarizeFn != nil {
		return s.summarizeFn(ctx, chunk)
	}
	return "summary of " + firstWord(chunk), nil
}

func (s *stubSummarizer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.chunks))
	copy(out, s.chunks)
	return out
}

func firstWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

type stubTranscriber struct {
	mu       sync.Mutex
	segments []Segment
	err      error
	audios   []Audio
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audio Audio) ([]Segment, error) {
	s.mu.Lock()
	s.audios = append(s.audios, audio)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.segments, nil
}

func (s *stubTranscriber) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audios)
}

type memorySessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]Session
	ttls     []time.Duration
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[uuid.UUID]Session)}
}

func (m *memorySessions) Save(ctx context.Context, session Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	m.ttls = append(m.ttls, ttl)
	return nil
}

func (m *memorySessions) Get(ctx context.Context, id uuid.UUID) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	return session, ok, nil
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte)}
}

func (m *memoryObjects) Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error) {
	if m.putErr != nil {
		return StoredObject{}, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (m *memoryObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryObjects) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	return keys
}

type queuedJob struct {
	name    string
	payload map[string]any
}

// recordingQueue holds jobs until the test drains them.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []queuedJob
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, name string, payload any) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, queuedJob{name: name, payload: payload.(map[string]any)})
	return nil
}

func (q *recordingQueue) drain(ctx context.Context, handler func(ctx context.Context, name string, payload map[string]any)) int {
	q.mu.Lock()
	jobs := q.jobs
	q.jobs = nil
	q.mu.Unlock()
	for _, job := range jobs {
		handler(ctx, job.name, job.payload)
	}
	return len(jobs)
}
