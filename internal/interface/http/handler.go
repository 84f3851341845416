package http

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
	apperrors "github.com/yanqian/callnotes/pkg/errors"
)

// Handler wires the HTTP transport to the call notes service.
type Handler struct {
	svc    callnotes.Service
	logger *slog.Logger
}

// NotesRequest carries a transcript that already exists.
type NotesRequest struct {
	Transcript string `json:"transcript"`
}

// NewHandler constructs the root HTTP handler.
func NewHandler(svc callnotes.Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With("component", "http.handler"),
	}
}

// ProcessCall runs the whole pipeline for an uploaded recording and returns the session.
func (h *Handler) ProcessCall(c *gin.Context) {
	audio, ok := h.readAudio(c)
	if !ok {
		return
	}
	session, err := h.svc.Process(c.Request.Context(), audio)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, session)
}

// SubmitCall stages the recording and processes it in the background.
func (h *Handler) SubmitCall(c *gin.Context) {
	audio, ok := h.readAudio(c)
	if !ok {
		return
	}
	session, err := h.svc.Submit(c.Request.Context(), audio)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.Header("Location", "/api/v1/calls/"+session.ID.String())
	c.JSON(http.StatusAccepted, session)
}

// GetCall returns a session by id.
func (h *Handler) GetCall(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	session, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, session)
}

// DownloadTranscript serves call_transcript.txt.
func (h *Handler) DownloadTranscript(c *gin.Context) {
	h.download(c, callnotes.ArtifactTranscript)
}

// DownloadNotes serves call_notes.txt.
func (h *Handler) DownloadNotes(c *gin.Context) {
	h.download(c, callnotes.ArtifactNotes)
}

// SummarizeTranscript builds a call note from a transcript in the request body.
func (h *Handler) SummarizeTranscript(c *gin.Context) {
	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, errMessage(err), err))
		return
	}
	session, err := h.svc.Summarize(c.Request.Context(), req.Transcript)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, session)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) download(c *gin.Context, kind callnotes.ArtifactKind) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	artifact, err := h.svc.Artifact(c.Request.Context(), id, kind)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(artifact.Filename))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Content)
}

func (h *Handler) readAudio(c *gin.Context) (callnotes.Audio, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			abortWithError(c, NewHTTPError(http.StatusRequestEntityTooLarge, apperrors.CodeInvalidInput, "audio file exceeds maximum allowed size", err))
			return callnotes.Audio{}, false
		}
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "file is required", err))
		return callnotes.Audio{}, false
	}
	data, err := readFormFile(fileHeader)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "failed to read upload", err))
		return callnotes.Audio{}, false
	}
	return callnotes.Audio{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	}, true
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "invalid session id", err))
		return uuid.UUID{}, false
	}
	return id, true
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
