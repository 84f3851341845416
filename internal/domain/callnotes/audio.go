package callnotes

import (
	"path/filepath"
	"strings"

	apperrors "github.com/yanqian/callnotes/pkg/errors"
)

var audioMimeTypes = map[string]string{
	".wav": "audio/wav",
	".mp3": "audio/mpeg",
}

var acceptedMimeTypes = map[string]struct{}{
	"audio/wav":      {},
	"audio/x-wav":    {},
	"audio/wave":     {},
	"audio/vnd.wave": {},
	"audio/x-pn-wav": {},
	"audio/mpeg":     {},
	"audio/mp3":      {},
	"audio/mpeg3":    {},
	"audio/x-mpeg":   {},
	"audio/x-mp3":    {},
	"audio/x-mpeg-3": {},
}

// IsSupportedAudio reports whether a file looks like a WAV or MP3 recording.
func IsSupportedAudio(filename, mimeType string) bool {
	if _, ok := audioMimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return true
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	_, ok := acceptedMimeTypes[mimeType]
	return ok
}

// AudioMimeType returns the MIME type implied by the file extension, or fallback.
func AudioMimeType(filename, fallback string) string {
	if mt, ok := audioMimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return fallback
}

func validateAudio(audio Audio, maxBytes int64) error {
	if len(audio.Data) == 0 {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "audio file cannot be empty", nil)
	}
	if maxBytes > 0 && int64(len(audio.Data)) > maxBytes {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "audio file exceeds maximum allowed size", nil)
	}
	if !IsSupportedAudio(audio.Filename, audio.MimeType) {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "unsupported audio format, expected WAV or MP3", nil)
	}
	return nil
}

// joinSegments concatenates segment texts with single spaces.
func joinSegments(segments []Segment) string {
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	return strings.Join(texts, " ")
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return "recording"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
