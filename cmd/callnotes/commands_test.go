package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
)

// fakeService answers with fixed artifacts for a single session.
type fakeService struct {
	session callnotes.Session
	audio   callnotes.Audio
	text    string
}

func (f *fakeService) Process(ctx context.Context, audio callnotes.Audio) (callnotes.Session, error) {
	f.audio = audio
	return f.session, nil
}

func (f *fakeService) Summarize(ctx context.Context, transcript string) (callnotes.Session, error) {
	f.text = transcript
	return f.session, nil
}

func (f *fakeService) Submit(ctx context.Context, audio callnotes.Audio) (callnotes.Session, error) {
	return f.session, nil
}

func (f *fakeService) HandleJob(ctx context.Context, name string, payload map[string]any) {}

func (f *fakeService) Get(ctx context.Context, id uuid.UUID) (callnotes.Session, error) {
	return f.session, nil
}

func (f *fakeService) Artifact(ctx context.Context, id uuid.UUID, kind callnotes.ArtifactKind) (callnotes.Artifact, error) {
	if kind == callnotes.ArtifactTranscript {
		return callnotes.Artifact{Filename: "call_transcript.txt", Content: []byte(f.session.Transcript)}, nil
	}
	return callnotes.Artifact{Filename: "call_notes.txt", Content: []byte(f.session.Notes)}, nil
}

func factoryFor(svc callnotes.Service) cliFactory {
	return func() (*cli, func(), error) {
		return newCLI(svc, slog.New(slog.NewTextHandler(io.Discard, nil))), func() {}, nil
	}
}

func runCmd(t *testing.T, svc callnotes.Service, stdin string, args ...string) string {
	t.Helper()
	root := newRootCmd(factoryFor(svc))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	require.NoError(t, root.ExecuteContext(context.Background()))
	return out.String()
}

func TestProcessCommandWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "call.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("ID3"), 0o600))
	svc := &fakeService{session: callnotes.Session{ID: uuid.New(), Transcript: "hello there", Notes: "- purpose: greeting"}}

	outDir := filepath.Join(dir, "out")
	stdout := runCmd(t, svc, "", "process", audioPath, "--out", outDir)

	require.Equal(t, "- purpose: greeting\n", stdout)
	require.Equal(t, "call.mp3", svc.audio.Filename)
	require.Equal(t, "audio/mpeg", svc.audio.MimeType)

	transcript, err := os.ReadFile(filepath.Join(outDir, "call_transcript.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello there", string(transcript))
	notes, err := os.ReadFile(filepath.Join(outDir, "call_notes.txt"))
	require.NoError(t, err)
	require.Equal(t, "- purpose: greeting", string(notes))
}

func TestNotesCommandReadsStdin(t *testing.T) {
	svc := &fakeService{session: callnotes.Session{ID: uuid.New(), Notes: "- sentiment: positive"}}

	stdout := runCmd(t, svc, "customer was happy", "notes", "-")
	require.Equal(t, "- sentiment: positive\n", stdout)
	require.Equal(t, "customer was happy", svc.text)
}

func TestProcessCommandRequiresArgument(t *testing.T) {
	root := newRootCmd(factoryFor(&fakeService{}))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"process"})
	require.Error(t, root.Execute())
}
