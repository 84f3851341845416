package whispercpp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
)

const sampleOutput = `{"transcription":[
 {"offsets":{"from":0,"to":1500},"text":" Thanks for calling."},
 {"offsets":{"from":1500,"to":4200},"text":" My policy lapsed."}
]}`

// fakeExecutor imitates whisper-cli by writing <-of>.json.
type fakeExecutor struct {
	mu     sync.Mutex
	calls  [][]string
	output string
	err    error
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-of" {
			if err := os.WriteFile(args[i+1]+".json", []byte(f.output), 0o600); err != nil {
				return "", err
			}
		}
	}
	return "", nil
}

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ggml-tiny.en.bin")
	require.NoError(t, os.WriteFile(path, []byte("model"), 0o600))
	return path
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTranscribeRunsCLIAndParsesSegments(t *testing.T) {
	exec := &fakeExecutor{output: sampleOutput}
	model := writeModel(t)
	tr := New(Options{ModelPath: model, TempDir: t.TempDir()}, exec, newTestLogger())

	segments, err := tr.Transcribe(context.Background(), callnotes.Audio{Filename: "call.mp3", Data: []byte("ID3")})
	require.NoError(t, err)
	require.Equal(t, []callnotes.Segment{
		{Text: " Thanks for calling.", Start: 0, End: 1.5},
		{Text: " My policy lapsed.", Start: 1.5, End: 4.2},
	}, segments)

	require.Len(t, exec.calls, 1)
	call := exec.calls[0]
	require.Equal(t, "whisper-cli", call[0])
	require.Contains(t, call, "-oj")
	require.Contains(t, call, model)
	require.Equal(t, ".mp3", filepath.Ext(call[4]))
}

func TestTranscribeMissingModel(t *testing.T) {
	exec := &fakeExecutor{output: sampleOutput}
	tr := New(Options{ModelPath: filepath.Join(t.TempDir(), "missing.bin")}, exec, newTestLogger())

	_, err := tr.Transcribe(context.Background(), callnotes.Audio{Filename: "call.wav", Data: []byte("RIFF")})
	require.ErrorContains(t, err, "whisper model")
	require.Empty(t, exec.calls)

	_, err = New(Options{}, exec, newTestLogger()).Transcribe(context.Background(), callnotes.Audio{Data: []byte("RIFF")})
	require.ErrorContains(t, err, "not configured")
}

func TestTranscribeCLIFailure(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("exit status 1: failed to read audio")}
	tr := New(Options{ModelPath: writeModel(t), TempDir: t.TempDir()}, exec, newTestLogger())

	_, err := tr.Transcribe(context.Background(), callnotes.Audio{Filename: "call.wav", Data: []byte("RIFF")})
	require.ErrorContains(t, err, "whisper transcribe")
}

func TestEnsureModelChecksOnceConcurrently(t *testing.T) {
	tr := New(Options{ModelPath: writeModel(t)}, &fakeExecutor{}, newTestLogger())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = tr.ensureModel()
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, os.Remove(tr.opts.ModelPath))
	require.NoError(t, tr.ensureModel())
}

func TestParseOutputRejectsGarbage(t *testing.T) {
	_, err := parseOutput([]byte("not json"))
	require.Error(t, err)

	segments, err := parseOutput([]byte(`{"transcription":[]}`))
	require.NoError(t, err)
	require.Empty(t, segments)
}
