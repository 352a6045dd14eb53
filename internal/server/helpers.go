package server

import (
	"net/http"

	"llmarena/internal/core"

	"github.com/gin-gonic/gin"
)

// respondWithError writes the {"error": message} body used by every API error.
func respondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// recoverPanic answers a panicking handler with a JSON 500.
func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	s.requestLogger(c).Error("Panic in handler %s: %v", c.FullPath(), recovered)
	respondWithError(c, http.StatusInternalServerError, core.ErrMsgInternal)
	c.Abort()
}

// requestLogger returns a logger that prefixes messages with the request ID.
func (s *Server) requestLogger(c *gin.Context) core.Logger {
	return &requestScopedLogger{base: s.config.Logger, id: c.GetString(requestIDKey)}
}

type requestScopedLogger struct {
	base core.Logger
	id   string
}

func (l *requestScopedLogger) with(format string, args []any) (string, []any) {
	if l.id == "" {
		return format, args
	}
	return "[%s] " + format, append([]any{l.id}, args...)
}

func (l *requestScopedLogger) Debug(format string, args ...any) {
	f, a := l.with(format, args)
	l.base.Debug(f, a...)
}

func (l *requestScopedLogger) Info(format string, args ...any) {
	f, a := l.with(format, args)
	l.base.Info(f, a...)
}

func (l *requestScopedLogger) Warn(format string, args ...any) {
	f, a := l.with(format, args)
	l.base.Warn(f, a...)
}

func (l *requestScopedLogger) Error(format string, args ...any) {
	f, a := l.with(format, args)
	l.base.Error(f, a...)
}

func (l *requestScopedLogger) Fatal(format string, args ...any) {
	f, a := l.with(format, args)
	l.base.Fatal(f, a...)
}

