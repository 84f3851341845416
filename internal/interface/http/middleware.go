package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yanqian/callnotes/pkg/errors"
)

// multipartOverhead leaves room for form boundaries and fields around the audio part.
const multipartOverhead = 1 << 20

func errorHandlingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		httpErr := asHTTPError(c.Errors.Last().Err)
		message := httpErr.Message
		if message == "" {
			message = httpErr.Error()
		}

		if httpErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		} else {
			logger.Warn("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		}

		c.JSON(httpErr.Status, gin.H{
			"error": gin.H{
				"code":    httpErr.Code,
				"message": message,
			},
		})
	}
}

// bodyLimitMiddleware caps request bodies so oversized uploads fail while being read.
func bodyLimitMiddleware(maxAudioBytes int64) gin.HandlerFunc {
	if maxAudioBytes <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limit := maxAudioBytes + multipartOverhead
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			abortWithError(c, NewHTTPError(http.StatusRequestEntityTooLarge, apperrors.CodeInvalidInput, "request body too large", nil))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
