package callnotes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/callnotes/pkg/errors"
	"github.com/yanqian/callnotes/pkg/util"
)

// JobProcessCall is the queue job that runs the pipeline for a submitted recording.
const JobProcessCall = "process_call"

const (
	defaultSessionTTL  = time.Hour
	transcriptFilename = "call_transcript.txt"
	notesFilename      = "call_notes.txt"
	plainTextUTF8      = "text/plain; charset=utf-8"
	fallbackAudioMime  = "application/octet-stream"
)

// Service exposes the call notes workflows.
type Service interface {
	// Process transcribes the recording and assembles its call note in the caller's goroutine.
	Process(ctx context.Context, audio Audio) (Session, error)
	// Summarize assembles a call note for an existing transcript.
	Summarize(ctx context.Context, transcript string) (Session, error)
	// Submit stages the recording and enqueues background processing.
	Submit(ctx context.Context, audio Audio) (Session, error)
	// HandleJob is the queue handler for JobProcessCall.
	HandleJob(ctx context.Context, name string, payload map[string]any)
	Get(ctx context.Context, id uuid.UUID) (Session, error)
	Artifact(ctx context.Context, id uuid.UUID, kind ArtifactKind) (Artifact, error)
}

type service struct {
	cfg         Config
	transcriber Transcriber
	assembler   *Assembler
	sessions    SessionStore
	storage     ObjectStorage
	queue       JobQueue
	now         util.Clock
	logger      *slog.Logger
}

// NewService is a wire provider for the call notes domain.
func NewService(cfg Config, transcriber Transcriber, assembler *Assembler, sessions SessionStore, storage ObjectStorage, queue JobQueue, logger *slog.Logger) Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	return &service{
		cfg:         cfg,
		transcriber: transcriber,
		assembler:   assembler,
		sessions:    sessions,
		storage:     storage,
		queue:       queue,
		now:         util.NowUTC,
		logger:      logger.With("component", "callnotes.service"),
	}
}

func (s *service) Process(ctx context.Context, audio Audio) (Session, error) {
	if err := validateAudio(audio, s.cfg.MaxAudioBytes); err != nil {
		return Session{}, err
	}
	if err := s.assembler.Ready(); err != nil {
		return Session{}, err
	}
	session := s.newSession(audio, SessionStatusProcessing)
	return s.run(ctx, session, audio)
}

func (s *service) Summarize(ctx context.Context, transcript string) (Session, error) {
	if strings.TrimSpace(transcript) == "" {
		return Session{}, apperrors.Wrap(apperrors.CodeInvalidInput, "transcript cannot be empty", nil)
	}
	if err := s.assembler.Ready(); err != nil {
		return Session{}, err
	}
	session := s.newSession(Audio{}, SessionStatusProcessing)
	session.Transcript = transcript
	return s.assemble(ctx, session)
}

func (s *service) Submit(ctx context.Context, audio Audio) (Session, error) {
	if err := validateAudio(audio, s.cfg.MaxAudioBytes); err != nil {
		return Session{}, err
	}
	if err := s.assembler.Ready(); err != nil {
		return Session{}, err
	}
	if s.storage == nil || s.queue == nil {
		return Session{}, apperrors.Wrap(apperrors.CodeConfiguration, "background processing is not configured", nil)
	}

	session := s.newSession(audio, SessionStatusPending)
	key := fmt.Sprintf("calls/%s/%s", session.ID, sanitizeFilename(audio.Filename))
	obj, err := s.storage.Put(ctx, key, audio.Data, session.MimeType)
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeStorage, "failed to stage audio", err)
	}
	session.AudioKey = obj.Key
	if err := s.sessions.Save(ctx, session, s.cfg.SessionTTL); err != nil {
		_ = s.storage.Delete(ctx, obj.Key)
		return Session{}, apperrors.Wrap(apperrors.CodeStorage, "failed to save session", err)
	}

	payload := map[string]any{"session_id": session.ID.String()}
	if err := s.queue.Enqueue(ctx, JobProcessCall, payload); err != nil {
		_ = s.storage.Delete(ctx, obj.Key)
		session.AudioKey = ""
		s.markFailed(ctx, session, "failed to enqueue processing")
		return Session{}, apperrors.Wrap(apperrors.CodeStorage, "failed to enqueue processing", err)
	}
	s.logger.Info("call submitted", "session_id", session.ID, "filename", session.Filename, "bytes", obj.Size)
	return session, nil
}

func (s *service) HandleJob(ctx context.Context, name string, payload map[string]any) {
	if name != JobProcessCall {
		s.logger.Warn("unknown job ignored", "job", name)
		return
	}
	raw, _ := payload["session_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		s.logger.Warn("job payload missing session id", "job", name, "error", err)
		return
	}
	if err := s.processSubmitted(ctx, id); err != nil {
		s.logger.Error("process_call failed", "session_id", id, "error", err)
	}
}

func (s *service) processSubmitted(ctx context.Context, id uuid.UUID) error {
	session, found, err := s.sessions.Get(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to load session", err)
	}
	if !found {
		return apperrors.Wrap(apperrors.CodeNotFound, "session not found", nil)
	}
	if session.Status != SessionStatusPending {
		return nil
	}

	key := session.AudioKey
	data, err := s.fetchAudio(ctx, key)
	if key != "" && s.storage != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("staged audio cleanup failed", "key", key, "error", delErr)
		}
	}
	session.AudioKey = ""
	if err != nil {
		s.markFailed(ctx, session, "failed to read staged audio")
		return err
	}

	session.Status = SessionStatusProcessing
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session, s.cfg.SessionTTL); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to save session", err)
	}
	_, err = s.run(ctx, session, Audio{Filename: session.Filename, MimeType: session.MimeType, Data: data})
	return err
}

func (s *service) fetchAudio(ctx context.Context, key string) ([]byte, error) {
	if key == "" || s.storage == nil {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "session has no staged audio", nil)
	}
	reader, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to fetch staged audio", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to read staged audio", err)
	}
	return data, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	session, found, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load session", err)
	}
	if !found {
		return Session{}, apperrors.Wrap(apperrors.CodeNotFound, "session not found or expired", nil)
	}
	return session, nil
}

func (s *service) Artifact(ctx context.Context, id uuid.UUID, kind ArtifactKind) (Artifact, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return Artifact{}, err
	}
	switch kind {
	case ArtifactTranscript:
		if session.Status != SessionStatusCompleted && session.Transcript == "" {
			return Artifact{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("transcript not available, session is %s", session.Status), nil)
		}
		return Artifact{Filename: transcriptFilename, ContentType: plainTextUTF8, Content: []byte(session.Transcript)}, nil
	case ArtifactNotes:
		if session.Status != SessionStatusCompleted {
			return Artifact{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("call notes not available, session is %s", session.Status), nil)
		}
		return Artifact{Filename: notesFilename, ContentType: plainTextUTF8, Content: []byte(session.Notes)}, nil
	default:
		return Artifact{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("unknown artifact %q", kind), nil)
	}
}

// run transcribes then assembles. Any stage failure marks the session failed and is returned as-is.
func (s *service) run(ctx context.Context, session Session, audio Audio) (Session, error) {
	start := time.Now()
	segments, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		err = apperrors.Wrap(apperrors.CodeTranscription, "transcribe audio", err)
		s.markFailed(ctx, session, err.Error())
		return Session{}, err
	}
	session.Transcript = joinSegments(segments)
	s.logger.Info("audio transcribed", "session_id", session.ID, "segments", len(segments), "words", countWords(session.Transcript), "latency_ms", time.Since(start).Milliseconds())
	return s.assemble(ctx, session)
}

func (s *service) assemble(ctx context.Context, session Session) (Session, error) {
	start := time.Now()
	notes, err := s.assembler.Assemble(ctx, session.Transcript)
	if err != nil {
		s.markFailed(ctx, session, err.Error())
		return Session{}, err
	}

	session.Status = SessionStatusCompleted
	session.Notes = notes.Text
	session.Chunks = notes.Chunks
	if !notes.TokenUsage.IsZero() {
		usage := notes.TokenUsage
		session.TokenUsage = &usage
	}
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session, s.cfg.SessionTTL); err != nil {
		// The caller still gets its note; only later downloads are affected.
		s.logger.Error("save completed session failed", "session_id", session.ID, "error", err)
	}
	s.logger.Info("call note assembled", "session_id", session.ID, "chunks", len(notes.Chunks), "latency_ms", time.Since(start).Milliseconds())
	return session, nil
}

func (s *service) markFailed(ctx context.Context, session Session, reason string) {
	session.Status = SessionStatusFailed
	session.Notes = ""
	session.Chunks = nil
	session.TokenUsage = nil
	session.Error = reason
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session, s.cfg.SessionTTL); err != nil {
		s.logger.Error("save failed session failed", "session_id", session.ID, "error", err)
	}
}

func (s *service) newSession(audio Audio, status SessionStatus) Session {
	now := s.now()
	session := Session{
		ID:        uuid.New(),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(audio.Data) > 0 {
		session.Filename = strings.TrimSpace(audio.Filename)
		session.MimeType = AudioMimeType(audio.Filename, audio.MimeType)
		if session.MimeType == "" {
			session.MimeType = fallbackAudioMime
		}
	}
	return session
}
