package callnotes

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/callnotes/pkg/errors"
)

type serviceFixture struct {
	svc         Service
	transcriber *stubTranscriber
	summarizer  *stubSummarizer
	sessions    *memorySessions
	objects     *memoryObjects
	queue       *recordingQueue
}

func newServiceFixture(t *testing.T, segments []Segment) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		transcriber: &stubTranscriber{segments: segments},
		summarizer:  &stubSummarizer{},
		sessions:    newMemorySessions(),
		objects:     newMemoryObjects(),
		queue:       &recordingQueue{},
	}
	assembler := NewAssembler(AssemblerConfig{MaxWords: 1000}, f.summarizer, nil, newTestLogger())
	f.svc = NewService(Config{MaxAudioBytes: 1 << 20, SessionTTL: 30 * time.Minute}, f.transcriber, assembler, f.sessions, f.objects, f.queue, newTestLogger())
	return f
}

func wavUpload() Audio {
	return Audio{Filename: "call.wav", MimeType: "audio/wav", Data: []byte("RIFF....WAVE")}
}

func TestProcessProducesTranscriptAndNotes(t *testing.T) {
	f := newServiceFixture(t, []Segment{{Text: "Hello, thanks for calling."}, {Text: "I need help with my bill."}})

	session, err := f.svc.Process(context.Background(), wavUpload())
	require.NoError(t, err)
	require.Equal(t, SessionStatusCompleted, session.Status)
	require.Equal(t, "Hello, thanks for calling. I need help with my bill.", session.Transcript)
	require.Equal(t, "summary of Hello,", session.Notes)
	require.Len(t, session.Chunks, 1)
	require.Equal(t, "audio/wav", session.MimeType)

	stored, err := f.svc.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, session.Notes, stored.Notes)
	require.Contains(t, f.sessions.ttls, 30*time.Minute)
}

func TestProcessRejectsInvalidAudio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		audio Audio
	}{
		{name: "empty", audio: Audio{Filename: "call.wav"}},
		{name: "unsupported", audio: Audio{Filename: "call.ogg", MimeType: "audio/ogg", Data: []byte("x")}},
		{name: "too large", audio: Audio{Filename: "call.mp3", Data: make([]byte, (1<<20)+1)}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newServiceFixture(t, nil)
			_, err := f.svc.Process(context.Background(), tt.audio)
			require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
			require.Zero(t, f.transcriber.calls())
		})
	}
}

func TestProcessMissingCredentialFailsBeforeTranscription(t *testing.T) {
	f := newServiceFixture(t, []Segment{{Text: "hello"}})
	f.summarizer.readyErr = apperrors.Wrap(apperrors.CodeConfiguration, "llm api key is not configured", nil)

	_, err := f.svc.Process(context.Background(), wavUpload())
	require.True(t, apperrors.IsCode(err, apperrors.CodeConfiguration))
	require.Zero(t, f.transcriber.calls())
	require.Empty(t, f.summarizer.seen())
}

func TestProcessTranscriptionFailure(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.transcriber.err = errors.New("decoder exploded")

	_, err := f.svc.Process(context.Background(), wavUpload())
	require.True(t, apperrors.IsCode(err, apperrors.CodeTranscription))
	require.Empty(t, f.summarizer.seen())
}

func TestProcessSilentAudioYieldsEmptyNote(t *testing.T) {
	f := newServiceFixture(t, nil)

	session, err := f.svc.Process(context.Background(), wavUpload())
	require.NoError(t, err)
	require.Equal(t, "", session.Transcript)
	require.Equal(t, "", session.Notes)
	require.Empty(t, f.summarizer.seen())

	artifact, err := f.svc.Artifact(context.Background(), session.ID, ArtifactNotes)
	require.NoError(t, err)
	require.Empty(t, artifact.Content)
}

func TestProcessChunkFailureKeepsTranscriptWithoutPartialNote(t *testing.T) {
	f := newServiceFixture(t, []Segment{{Text: strings.Join(makeWords(1500), " ")}})
	f.summarizer.summarizeFn = func(ctx context.Context, chunk string) (string, error) {
		if firstWord(chunk) == "w1000" {
			return "", apperrors.Wrap(apperrors.CodeRemoteService, "chat completion request failed", errors.New("status=502"))
		}
		return "first half", nil
	}

	_, err := f.svc.Process(context.Background(), wavUpload())
	require.True(t, apperrors.IsCode(err, apperrors.CodeRemoteService))

	require.Len(t, f.sessions.sessions, 1)
	for _, session := range f.sessions.sessions {
		require.Equal(t, SessionStatusFailed, session.Status)
		require.Empty(t, session.Notes)
		require.NotEmpty(t, session.Transcript)
		require.NotEmpty(t, session.Error)

		_, err := f.svc.Artifact(context.Background(), session.ID, ArtifactNotes)
		require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
		transcript, err := f.svc.Artifact(context.Background(), session.ID, ArtifactTranscript)
		require.NoError(t, err)
		require.Equal(t, session.Transcript, string(transcript.Content))
	}
}

func TestSummarizeTranscript(t *testing.T) {
	f := newServiceFixture(t, nil)

	session, err := f.svc.Summarize(context.Background(), strings.Join(makeWords(2001), " "))
	require.NoError(t, err)
	require.Equal(t, "summary of w0\n\n---\n\nsummary of w1000\n\n---\n\nsummary of w2000", session.Notes)
	require.Zero(t, f.transcriber.calls())

	_, err = f.svc.Summarize(context.Background(), "  ")
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestSubmitStagesAudioAndJobCompletesSession(t *testing.T) {
	f := newServiceFixture(t, []Segment{{Text: "customer asked"}, {Text: "about coverage"}})
	ctx := context.Background()

	upload := wavUpload()
	upload.Filename = "../weird name.wav"
	session, err := f.svc.Submit(ctx, upload)
	require.NoError(t, err)
	require.Equal(t, SessionStatusPending, session.Status)
	require.Equal(t, "calls/"+session.ID.String()+"/weird_name.wav", session.AudioKey)
	require.Equal(t, []string{session.AudioKey}, f.objects.keys())

	_, err = f.svc.Artifact(ctx, session.ID, ArtifactTranscript)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	require.Equal(t, 1, f.queue.drain(ctx, f.svc.HandleJob))

	done, err := f.svc.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, SessionStatusCompleted, done.Status)
	require.Equal(t, "customer asked about coverage", done.Transcript)
	require.Equal(t, "summary of customer", done.Notes)
	require.Empty(t, done.AudioKey)
	require.Empty(t, f.objects.keys())
	require.Equal(t, upload.Data, f.transcriber.audios[0].Data)

	notes, err := f.svc.Artifact(ctx, session.ID, ArtifactNotes)
	require.NoError(t, err)
	require.Equal(t, "call_notes.txt", notes.Filename)
	require.Equal(t, "text/plain; charset=utf-8", notes.ContentType)
	require.Equal(t, "summary of customer", string(notes.Content))

	transcript, err := f.svc.Artifact(ctx, session.ID, ArtifactTranscript)
	require.NoError(t, err)
	require.Equal(t, "call_transcript.txt", transcript.Filename)
}

func TestSubmitQueueFailure(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.queue.err = errors.New("valkey down")

	_, err := f.svc.Submit(context.Background(), wavUpload())
	require.True(t, apperrors.IsCode(err, apperrors.CodeStorage))
	require.Empty(t, f.objects.keys())

	f.sessions.mu.Lock()
	defer f.sessions.mu.Unlock()
	require.Len(t, f.sessions.sessions, 1)
	for _, session := range f.sessions.sessions {
		require.Equal(t, SessionStatusFailed, session.Status)
		require.Empty(t, session.AudioKey)
		require.NotEmpty(t, session.Error)
	}
}

func TestHandleJobIgnoresMalformedPayloads(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	f.svc.HandleJob(ctx, "unknown_job", map[string]any{"session_id": uuid.NewString()})
	f.svc.HandleJob(ctx, JobProcessCall, map[string]any{"session_id": "not-a-uuid"})
	f.svc.HandleJob(ctx, JobProcessCall, map[string]any{"session_id": uuid.NewString()})

	require.Zero(t, f.transcriber.calls())
	require.Empty(t, f.sessions.sessions)
}

func TestGetAndArtifactErrors(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, uuid.New())
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	session, err := f.svc.Summarize(ctx, "short transcript")
	require.NoError(t, err)
	_, err = f.svc.Artifact(ctx, session.ID, ArtifactKind("audio"))
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}
