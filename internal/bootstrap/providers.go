package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
	"github.com/yanqian/callnotes/internal/infra/asr/openai"
	"github.com/yanqian/callnotes/internal/infra/asr/whispercpp"
	"github.com/yanqian/callnotes/internal/infra/config"
	"github.com/yanqian/callnotes/internal/infra/llm/chatgpt"
	"github.com/yanqian/callnotes/internal/infra/llm/gemini"
	"github.com/yanqian/callnotes/internal/infra/queue"
	"github.com/yanqian/callnotes/internal/infra/sessionstore"
	"github.com/yanqian/callnotes/internal/infra/storage"
	"github.com/yanqian/callnotes/internal/infra/tokenizer"
	"github.com/yanqian/callnotes/pkg/executor"
	"github.com/yanqian/callnotes/pkg/metrics"
)

// PipelineSet builds the call notes service from *config.Config and *slog.Logger.
var PipelineSet = wire.NewSet(
	ProvideServiceConfig,
	ProvideSummarizerConfig,
	ProvideAssemblerConfig,
	ProvideChatClient,
	ProvideTokenCounter,
	ProvideTranscriber,
	ProvideValkeyClient,
	ProvideSessionStore,
	ProvideObjectStorage,
	ProvideQueue,
	ProvideService,
	callnotes.NewSummarizer,
	callnotes.NewAssembler,
)

// ProvideServiceConfig maps config onto the service settings.
func ProvideServiceConfig(cfg *config.Config) callnotes.Config {
	return callnotes.Config{
		MaxAudioBytes: cfg.Notes.MaxAudioBytes,
		SessionTTL:    cfg.Sessions.TTL,
	}
}

// ProvideSummarizerConfig maps config onto the per-chunk prompt settings.
func ProvideSummarizerConfig(cfg *config.Config) callnotes.SummarizerConfig {
	return callnotes.SummarizerConfig{
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		SystemPrompt: cfg.Notes.SystemPrompt,
		Instructions: cfg.Notes.Instructions,
	}
}

// ProvideAssemblerConfig maps config onto chunking settings.
func ProvideAssemblerConfig(cfg *config.Config) callnotes.AssemblerConfig {
	return callnotes.AssemblerConfig{
		MaxWords:    cfg.Notes.MaxWords,
		Concurrency: cfg.Notes.Concurrency,
	}
}

// ProvideChatClient selects the chat completion transport.
func ProvideChatClient(cfg *config.Config, logger *slog.Logger) (callnotes.ChatClient, error) {
	if strings.EqualFold(cfg.LLM.Provider, "gemini") {
		client, err := gemini.NewClient(context.Background(), cfg.LLM.APIKey, cfg.LLM.Timeout)
		if err != nil {
			return nil, err
		}
		logger.Info("llm provider selected", "provider", "gemini", "model", cfg.LLM.Model, "credentials", client.HasCredentials())
		return client, nil
	}
	client := chatgpt.NewClient(cfg.LLM.APIKey, chatgpt.Options{
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
		AppName: cfg.LLM.AppName,
		Referer: cfg.LLM.Referer,
	})
	logger.Info("llm provider selected", "provider", "openai", "base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model, "credentials", client.HasCredentials())
	return client, nil
}

// ProvideTokenCounter builds the tiktoken estimator.
func ProvideTokenCounter(cfg *config.Config, logger *slog.Logger) callnotes.TokenCounter {
	return tokenizer.New(cfg.Notes.TokenEncoding, logger)
}

// ProvideTranscriber selects the speech-to-text backend.
func ProvideTranscriber(cfg *config.Config, logger *slog.Logger) callnotes.Transcriber {
	if strings.EqualFold(cfg.ASR.Backend, "whispercpp") {
		return whispercpp.New(whispercpp.Options{
			BinaryPath: cfg.ASR.BinaryPath,
			ModelPath:  cfg.ASR.ModelPath,
			Language:   cfg.ASR.Language,
			Threads:    cfg.ASR.Threads,
			BeamSize:   cfg.ASR.BeamSize,
		}, executor.New(), logger)
	}
	return openai.NewClient(openai.Options{
		BaseURL:  cfg.ASR.BaseURL,
		APIKey:   cfg.ASR.APIKey,
		Model:    cfg.ASR.Model,
		Language: cfg.ASR.Language,
		Timeout:  cfg.ASR.Timeout,
	}, logger)
}

// ProvideValkeyClient connects when sessions.redis is enabled and returns nil otherwise.
// Connection failures fall back to in-memory stores unless the valkey queue needs the client.
func ProvideValkeyClient(cfg *config.Config, logger *slog.Logger) (valkey.Client, func(), error) {
	noop := func() {}
	if !cfg.Sessions.Redis.Enabled {
		return nil, noop, nil
	}
	requireClient := strings.EqualFold(cfg.Queue.Backend, "valkey")
	fail := func(msg string, err error) (valkey.Client, func(), error) {
		if requireClient {
			return nil, noop, fmt.Errorf("%s: %w", msg, err)
		}
		logger.Error(msg+", falling back to memory", "error", err)
		return nil, noop, nil
	}

	opt, err := buildValkeyOptions(cfg.Sessions.Redis.Addr)
	if err != nil {
		return fail("invalid valkey configuration", err)
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return fail("failed to create valkey client", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return fail("valkey ping failed", err)
	}
	logger.Info("valkey connected", "addr", cfg.Sessions.Redis.Addr)
	return client, client.Close, nil
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

// ProvideSessionStore keeps sessions in Valkey when connected, otherwise in memory.
func ProvideSessionStore(cfg *config.Config, client valkey.Client) callnotes.SessionStore {
	if client != nil {
		return sessionstore.NewValkeyStore(client, cfg.Sessions.Redis.Prefix)
	}
	return sessionstore.NewMemoryStore(nil)
}

// ProvideObjectStorage selects where submitted audio is staged.
func ProvideObjectStorage(cfg *config.Config, logger *slog.Logger) (callnotes.ObjectStorage, error) {
	if strings.EqualFold(cfg.Storage.Backend, "r2") {
		return storage.NewR2Storage(storage.R2Options{
			Endpoint:  cfg.Storage.R2.Endpoint,
			AccessKey: cfg.Storage.R2.AccessKey,
			SecretKey: cfg.Storage.R2.SecretKey,
			Bucket:    cfg.Storage.R2.Bucket,
			Region:    cfg.Storage.R2.Region,
		}, logger)
	}
	return storage.NewMemoryStorage(), nil
}

// ProvideQueue selects the background job queue. Its handler is attached by ProvideService.
func ProvideQueue(cfg *config.Config, client valkey.Client, logger *slog.Logger) (queue.HandlerQueue, func()) {
	var q queue.HandlerQueue
	if strings.EqualFold(cfg.Queue.Backend, "valkey") && client != nil {
		q = queue.NewValkeyQueue(client, cfg.Queue.Key, logger)
	} else {
		q = queue.NewImmediateQueue(nil)
	}
	return q, func() {
		if err := q.Close(); err != nil {
			logger.Error("queue close failed", "error", err)
		}
	}
}

// ProvideService builds the service and subscribes it to the job queue.
func ProvideService(cfg callnotes.Config, transcriber callnotes.Transcriber, assembler *callnotes.Assembler, sessions callnotes.SessionStore, objects callnotes.ObjectStorage, q queue.HandlerQueue, logger *slog.Logger) callnotes.Service {
	svc := callnotes.NewService(cfg, transcriber, assembler, sessions, objects, q, logger)
	q.SetHandler(svc.HandleJob)
	return svc
}

// ProvideRegistry registers the pipeline and runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(reg)
	return reg
}
