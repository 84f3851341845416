package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
	"github.com/yanqian/callnotes/internal/infra/asr/openai"
	"github.com/yanqian/callnotes/internal/infra/asr/whispercpp"
	"github.com/yanqian/callnotes/internal/infra/config"
	"github.com/yanqian/callnotes/internal/infra/llm/chatgpt"
	"github.com/yanqian/callnotes/internal/infra/llm/gemini"
	"github.com/yanqian/callnotes/internal/infra/queue"
	"github.com/yanqian/callnotes/internal/infra/sessionstore"
	"github.com/yanqian/callnotes/internal/infra/storage"
	apperrors "github.com/yanqian/callnotes/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Provider:    "openai",
			Model:       "mistralai/mistral-7b-instruct:free",
			Temperature: 0.2,
			Timeout:     time.Second,
		},
		ASR:      config.ASRConfig{Backend: "openai"},
		Notes:    config.NotesConfig{MaxWords: 1000, Concurrency: 1, MaxAudioBytes: 1 << 20},
		Sessions: config.SessionsConfig{TTL: time.Hour},
		Storage:  config.StorageConfig{Backend: "memory"},
		Queue:    config.QueueConfig{Backend: "immediate"},
	}
}

func TestProvidersDefaultToLocalBackends(t *testing.T) {
	cfg := testConfig()
	logger := newTestLogger()

	client, cleanup, err := ProvideValkeyClient(cfg, logger)
	require.NoError(t, err)
	defer cleanup()
	require.Nil(t, client)

	require.IsType(t, &sessionstore.MemoryStore{}, ProvideSessionStore(cfg, client))

	objects, err := ProvideObjectStorage(cfg, logger)
	require.NoError(t, err)
	require.IsType(t, &storage.MemoryStorage{}, objects)

	q, closeQueue := ProvideQueue(cfg, client, logger)
	defer closeQueue()
	require.IsType(t, &queue.ImmediateQueue{}, q)

	require.IsType(t, &openai.Client{}, ProvideTranscriber(cfg, logger))
	cfg.ASR.Backend = "whispercpp"
	require.IsType(t, &whispercpp.Transcriber{}, ProvideTranscriber(cfg, logger))
}

func TestProvideChatClient(t *testing.T) {
	cfg := testConfig()
	chat, err := ProvideChatClient(cfg, newTestLogger())
	require.NoError(t, err)
	require.IsType(t, &chatgpt.Client{}, chat)
	require.False(t, chat.HasCredentials())

	cfg.LLM.Provider = "gemini"
	chat, err = ProvideChatClient(cfg, newTestLogger())
	require.NoError(t, err)
	require.IsType(t, &gemini.Client{}, chat)
}

func TestWiredServiceReportsMissingCredentialOnFirstUse(t *testing.T) {
	cfg := testConfig()
	logger := newTestLogger()

	chat, err := ProvideChatClient(cfg, logger)
	require.NoError(t, err)
	summarizer := callnotes.NewSummarizer(ProvideSummarizerConfig(cfg), chat, logger)
	assembler := callnotes.NewAssembler(ProvideAssemblerConfig(cfg), summarizer, nil, logger)
	q, closeQueue := ProvideQueue(cfg, nil, logger)
	defer closeQueue()
	objects, err := ProvideObjectStorage(cfg, logger)
	require.NoError(t, err)

	svc := ProvideService(ProvideServiceConfig(cfg), ProvideTranscriber(cfg, logger), assembler, ProvideSessionStore(cfg, nil), objects, q, logger)
	_, err = svc.Summarize(context.Background(), "the customer asked about their renewal")
	require.True(t, apperrors.IsCode(err, apperrors.CodeConfiguration))
}

func TestSubmitFailsWhenQueueHasNoHandler(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = "sk-test"
	logger := newTestLogger()

	chat, err := ProvideChatClient(cfg, logger)
	require.NoError(t, err)
	summarizer := callnotes.NewSummarizer(ProvideSummarizerConfig(cfg), chat, logger)
	assembler := callnotes.NewAssembler(ProvideAssemblerConfig(cfg), summarizer, nil, logger)
	objects := storage.NewMemoryStorage()
	q := queue.NewImmediateQueue(nil)
	defer q.Close()

	svc := callnotes.NewService(ProvideServiceConfig(cfg), ProvideTranscriber(cfg, logger), assembler, sessionstore.NewMemoryStore(nil), objects, q, logger)
	_, err = svc.Submit(context.Background(), callnotes.Audio{Filename: "call.wav", MimeType: "audio/wav", Data: []byte("RIFF")})
	require.True(t, apperrors.IsCode(err, apperrors.CodeStorage))
	require.ErrorIs(t, err, queue.ErrNoHandler)
	require.Zero(t, objects.Len())
}

func TestProvideRegistryExposesPipelineMetrics(t *testing.T) {
	reg := ProvideRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
