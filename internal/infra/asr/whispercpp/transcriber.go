package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
	"github.com/yanqian/callnotes/pkg/executor"
	"github.com/yanqian/callnotes/pkg/metrics"
)

const (
	backendName       = "whispercpp"
	defaultBinaryPath = "whisper-cli"
	defaultLanguage   = "en"
	defaultThreads    = 4
	defaultBeamSize   = 5
)

// Options points at the whisper.cpp CLI and model.
type Options struct {
	BinaryPath string
	ModelPath  string
	Language   string
	Threads    int
	BeamSize   int
	// TempDir holds the audio copy and JSON output per call; empty uses os.TempDir.
	TempDir string
}

// Transcriber runs the whisper.cpp CLI once per recording.
type Transcriber struct {
	opts   Options
	exec   executor.Executor
	logger *slog.Logger

	group singleflight.Group
	mu    sync.Mutex
	ready bool
}

type output struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// New builds the transcriber. The model file is not checked until the first call.
func New(opts Options, exec executor.Executor, logger *slog.Logger) *Transcriber {
	if opts.BinaryPath == "" {
		opts.BinaryPath = defaultBinaryPath
	}
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	if opts.Threads <= 0 {
		opts.Threads = defaultThreads
	}
	if opts.BeamSize <= 0 {
		opts.BeamSize = defaultBeamSize
	}
	return &Transcriber{
		opts:   opts,
		exec:   exec,
		logger: logger.With("component", "asr.whispercpp"),
	}
}

// Transcribe writes the recording to a temp dir, runs whisper.cpp with JSON output and
// returns its segments in order.
func (t *Transcriber) Transcribe(ctx context.Context, audio callnotes.Audio) (segments []callnotes.Segment, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveTranscription(backendName, time.Since(start), err)
	}()

	if err := t.ensureModel(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(t.opts.TempDir, "callnotes-asr-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(audio.Filename)
	if ext == "" {
		ext = ".wav"
	}
	input := filepath.Join(dir, "input"+ext)
	if err := os.WriteFile(input, audio.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}

	prefix := filepath.Join(dir, "output")
	args := []string{
		"-m", t.opts.ModelPath,
		"-f", input,
		"-l", t.opts.Language,
		"-t", strconv.Itoa(t.opts.Threads),
		"-bs", strconv.Itoa(t.opts.BeamSize),
		"-np",
		"-oj",
		"-of", prefix,
	}
	if _, err := t.exec.Execute(ctx, t.opts.BinaryPath, args...); err != nil {
		return nil, fmt.Errorf("whisper transcribe: %w", err)
	}

	raw, err := os.ReadFile(prefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	segments, err = parseOutput(raw)
	if err != nil {
		return nil, err
	}
	t.logger.Info("transcription completed", "segments", len(segments), "latency_ms", time.Since(start).Milliseconds())
	return segments, nil
}

// ensureModel stats the model file once. Concurrent first calls share one check; a failed
// check is retried on the next call.
func (t *Transcriber) ensureModel() error {
	t.mu.Lock()
	ready := t.ready
	t.mu.Unlock()
	if ready {
		return nil
	}
	_, err, _ := t.group.Do("model", func() (any, error) {
		if t.opts.ModelPath == "" {
			return nil, fmt.Errorf("whisper model path is not configured")
		}
		info, err := os.Stat(t.opts.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("whisper model: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("whisper model %s is a directory", t.opts.ModelPath)
		}
		t.mu.Lock()
		t.ready = true
		t.mu.Unlock()
		t.logger.Info("whisper model found", "model", t.opts.ModelPath, "bytes", info.Size())
		return nil, nil
	})
	return err
}

func parseOutput(raw []byte) ([]callnotes.Segment, error) {
	var out output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode whisper output: %w", err)
	}
	segments := make([]callnotes.Segment, 0, len(out.Transcription))
	for _, item := range out.Transcription {
		segments = append(segments, callnotes.Segment{
			Text:  item.Text,
			Start: float64(item.Offsets.From) / 1000,
			End:   float64(item.Offsets.To) / 1000,
		})
	}
	return segments, nil
}

var _ callnotes.Transcriber = (*Transcriber)(nil)
