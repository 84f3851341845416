package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath      = "configs/config.yaml"
	defaultOpenRouterModel = "mistralai/mistral-7b-instruct:free"
	defaultGeminiModel     = "gemini-2.5-flash"
)

// Config aggregates runtime configuration used across the service and the CLI.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	LLM      LLMConfig      `yaml:"llm"`
	ASR      ASRConfig      `yaml:"asr"`
	Notes    NotesConfig    `yaml:"notes"`
	Sessions SessionsConfig `yaml:"sessions"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	CORSOrigins  []string        `yaml:"corsOrigins"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// LLMConfig selects the chat completion backend used for chunk summaries.
type LLMConfig struct {
	// Provider is "openai" for any OpenAI-compatible endpoint (OpenRouter by default) or "gemini".
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseUrl"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	AppName     string        `yaml:"appName"`
	Referer     string        `yaml:"referer"`
}

// ASRConfig selects the speech-to-text backend.
type ASRConfig struct {
	// Backend is "openai" (HTTP transcription endpoint) or "whispercpp" (local CLI).
	Backend    string        `yaml:"backend"`
	BaseURL    string        `yaml:"baseUrl"`
	APIKey     string        `yaml:"apiKey"`
	Model      string        `yaml:"model"`
	Language   string        `yaml:"language"`
	Timeout    time.Duration `yaml:"timeout"`
	BinaryPath string        `yaml:"binaryPath"`
	ModelPath  string        `yaml:"modelPath"`
	Threads    int           `yaml:"threads"`
	BeamSize   int           `yaml:"beamSize"`
}

// NotesConfig controls chunking and prompting.
type NotesConfig struct {
	MaxWords      int    `yaml:"maxWords"`
	Concurrency   int    `yaml:"concurrency"`
	SystemPrompt  string `yaml:"systemPrompt"`
	Instructions  string `yaml:"instructions"`
	MaxAudioBytes int64  `yaml:"maxAudioBytes"`
	TokenEncoding string `yaml:"tokenEncoding"`
}

// SessionsConfig controls how long artifacts stay downloadable.
type SessionsConfig struct {
	TTL   time.Duration `yaml:"ttl"`
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig contains connection information for Valkey/Redis.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// StorageConfig selects where submitted audio waits for processing.
type StorageConfig struct {
	Backend string   `yaml:"backend"`
	R2      R2Config `yaml:"r2"`
}

// R2Config locates an S3-compatible bucket.
type R2Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// QueueConfig selects the background job queue.
type QueueConfig struct {
	Backend string `yaml:"backend"`
	Key     string `yaml:"key"`
}

// MetricsConfig exposes prometheus collectors.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads .env, the YAML file and environment variables, in that order of precedence
// from lowest to highest.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(defaultConfigPath); err == nil {
		if err := hydrateFromFile(cfg, defaultConfigPath); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv fills unset variables from ENV_FILE or ./.env. A missing default file is fine.
func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.RequestsPerMinute, "HTTP_RATE_LIMIT_RPM")
	setInt(&cfg.HTTP.RateLimit.Burst, "HTTP_RATE_LIMIT_BURST")
	if v := os.Getenv("HTTP_CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.APIKey, "OPENROUTER_API_KEY")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setDuration(&cfg.LLM.Timeout, "LLM_TIMEOUT")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if cfg.LLM.APIKey == "" && strings.EqualFold(cfg.LLM.Provider, "gemini") {
		setString(&cfg.LLM.APIKey, "GEMINI_API_KEY")
	}

	setString(&cfg.ASR.Backend, "ASR_BACKEND")
	setString(&cfg.ASR.BaseURL, "ASR_BASE_URL")
	setString(&cfg.ASR.APIKey, "OPENAI_API_KEY")
	setString(&cfg.ASR.APIKey, "ASR_API_KEY")
	setString(&cfg.ASR.Model, "ASR_MODEL")
	setString(&cfg.ASR.Language, "ASR_LANGUAGE")
	setDuration(&cfg.ASR.Timeout, "ASR_TIMEOUT")
	setString(&cfg.ASR.BinaryPath, "WHISPER_BINARY_PATH")
	setString(&cfg.ASR.ModelPath, "WHISPER_MODEL_PATH")
	setInt(&cfg.ASR.Threads, "WHISPER_THREADS")

	setInt(&cfg.Notes.MaxWords, "NOTES_MAX_WORDS")
	setInt(&cfg.Notes.Concurrency, "NOTES_CONCURRENCY")
	setString(&cfg.Notes.SystemPrompt, "NOTES_SYSTEM_PROMPT")
	setString(&cfg.Notes.Instructions, "NOTES_INSTRUCTIONS")
	if v := os.Getenv("NOTES_MAX_AUDIO_BYTES"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Notes.MaxAudioBytes = parsed
		}
	}

	setDuration(&cfg.Sessions.TTL, "SESSION_TTL")
	setBool(&cfg.Sessions.Redis.Enabled, "REDIS_ENABLED")
	setString(&cfg.Sessions.Redis.Addr, "REDIS_ADDR")

	setString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setString(&cfg.Storage.R2.Endpoint, "R2_ENDPOINT")
	setString(&cfg.Storage.R2.AccessKey, "R2_ACCESS_KEY")
	setString(&cfg.Storage.R2.SecretKey, "R2_SECRET_KEY")
	setString(&cfg.Storage.R2.Bucket, "R2_BUCKET")

	setString(&cfg.Queue.Backend, "QUEUE_BACKEND")
	setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 30,
				Burst:             10,
			},
		},
		LLM: LLMConfig{
			Provider:    "openai",
			BaseURL:     "https://openrouter.ai/api/v1",
			Temperature: 0.2,
			Timeout:     60 * time.Second,
			AppName:     "callnotes",
		},
		ASR: ASRConfig{
			Backend:    "openai",
			BaseURL:    "https://api.openai.com/v1",
			Model:      "whisper-1",
			Language:   "en",
			BinaryPath: "whisper-cli",
			ModelPath:  "models/ggml-tiny.en.bin",
			Threads:    4,
			BeamSize:   5,
		},
		Notes: NotesConfig{
			MaxWords:      1000,
			Concurrency:   1,
			MaxAudioBytes: 50 << 20,
			TokenEncoding: "cl100k_base",
		},
		Sessions: SessionsConfig{
			TTL: time.Hour,
			Redis: RedisConfig{
				Prefix: "callnotes",
			},
		},
		Storage: StorageConfig{
			Backend: "memory",
			R2: R2Config{
				Region: "auto",
			},
		},
		Queue: QueueConfig{
			Backend: "immediate",
			Key:     "callnotes:jobs",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// applyDefaults fills values whose default depends on other settings.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.LLM.Model) != "" {
		return
	}
	if strings.EqualFold(c.LLM.Provider, "gemini") {
		c.LLM.Model = defaultGeminiModel
	} else {
		c.LLM.Model = defaultOpenRouterModel
	}
}

// Validate ensures the configuration is safe to use. A missing LLM key is not an error
// here; it surfaces as a configuration error on first use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.LLM.Timeout < 0 {
		return errors.New("llm.timeout cannot be negative")
	}
	switch strings.ToLower(c.ASR.Backend) {
	case "openai", "whispercpp":
	default:
		return fmt.Errorf("asr.backend %q is not supported", c.ASR.Backend)
	}
	if c.ASR.Timeout < 0 {
		return errors.New("asr.timeout cannot be negative")
	}
	if c.Notes.MaxWords <= 0 {
		return errors.New("notes.maxWords must be positive")
	}
	if c.Notes.Concurrency <= 0 {
		return errors.New("notes.concurrency must be positive")
	}
	if c.Notes.MaxAudioBytes <= 0 {
		return errors.New("notes.maxAudioBytes must be positive")
	}
	if c.Sessions.TTL <= 0 {
		return errors.New("sessions.ttl must be positive")
	}
	if c.Sessions.Redis.Enabled && strings.TrimSpace(c.Sessions.Redis.Addr) == "" {
		return errors.New("sessions.redis.addr cannot be empty when redis is enabled")
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "memory":
	case "r2":
		if strings.TrimSpace(c.Storage.R2.Endpoint) == "" || strings.TrimSpace(c.Storage.R2.Bucket) == "" {
			return errors.New("storage.r2.endpoint and storage.r2.bucket are required for the r2 backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	switch strings.ToLower(c.Queue.Backend) {
	case "immediate":
	case "valkey":
		if !c.Sessions.Redis.Enabled {
			return errors.New("queue.backend valkey requires sessions.redis to be enabled")
		}
		if strings.ToLower(c.Storage.Backend) == "memory" {
			return errors.New("queue.backend valkey requires shared storage (storage.backend r2)")
		}
	default:
		return fmt.Errorf("queue.backend %q is not supported", c.Queue.Backend)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	return nil
}
