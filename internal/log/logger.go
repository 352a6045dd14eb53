package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"llmarena/internal/core"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppLogger is the application logger implementation, backed by zap.
type AppLogger struct {
	sugar      *zap.SugaredLogger
	debug      bool
	fileHandle *os.File
	mu         sync.RWMutex
}

// bracketLevelEncoder renders levels as "[INFO]", "[WARN]", ...
func bracketLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

func newZapCore(output io.Writer, debugMode bool) zapcore.Core {
	level := zapcore.InfoLevel
	if debugMode {
		level = zapcore.DebugLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(core.TimeFormatDateTime),
		EncodeLevel:      bracketLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}

	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(output), level)
}

// NewAppLoggerWithConfig creates a logger instance with configuration.
func NewAppLoggerWithConfig(output io.Writer, debugMode bool) *AppLogger {
	return &AppLogger{
		sugar: zap.New(newZapCore(output, debugMode)).Sugar(),
		debug: debugMode,
	}
}

// Debug logs a message at DEBUG level.
func (l *AppLogger) Debug(format string, args ...any) {
	if l != nil && l.debug {
		l.sugar.Debugf(format, args...)
	}
}

// Info logs a message at INFO level.
func (l *AppLogger) Info(format string, args ...any) {
	if l != nil {
		l.sugar.Infof(format, args...)
	}
}

// Warn logs a message at WARN level.
func (l *AppLogger) Warn(format string, args ...any) {
	if l != nil {
		l.sugar.Warnf(format, args...)
	}
}

// Error logs a message at ERROR level.
func (l *AppLogger) Error(format string, args ...any) {
	if l != nil {
		l.sugar.Errorf(format, args...)
	}
}

// Fatal logs a message at FATAL level and terminates the process.
func (l *AppLogger) Fatal(format string, args ...any) {
	if l != nil {
		l.sugar.Fatalf(format, args...)
		return
	}
	NewAppLoggerWithConfig(os.Stderr, false).sugar.Fatalf(format, args...)
}

// Close flushes buffered entries and closes the log file handle.
func (l *AppLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.sugar.Sync()

	if l.fileHandle != nil {
		err := l.fileHandle.Close()
		l.fileHandle = nil
		return err
	}
	return nil
}

// containsPathTraversal checks if path contains parent directory references.
func containsPathTraversal(path string) bool {
	for _, pattern := range []string{"../", "..\\", "/..", "\\.."} {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return path == ".."
}

// createDebugFileOutput creates debug file output, falls back gracefully on failure.
func createDebugFileOutput(warn func(string, ...any)) (io.Writer, *os.File) {
	debugFile := os.Getenv("DEBUG_FILE")
	if debugFile == "" {
		return os.Stdout, nil
	}

	if len(debugFile) > core.MaxDebugFilePathLength {
		warn("DEBUG_FILE path too long, falling back to stdout")
		return os.Stdout, nil
	}

	if containsPathTraversal(debugFile) {
		warn("DEBUG_FILE contains path traversal characters, falling back to stdout")
		return os.Stdout, nil
	}

	//nolint:gosec // G304: debugFile from env var, validated by containsPathTraversal
	file, err := os.OpenFile(debugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, core.FilePermissionReadWrite)
	if err != nil {
		warn("Failed to open DEBUG_FILE '%s': %v, falling back to stdout", debugFile, err)
		return os.Stdout, nil
	}

	return file, file
}

// IsDebug returns whether the app is running in debug mode.
func IsDebug() bool {
	return os.Getenv("GIN_MODE") == "debug"
}

// CreateLogger creates a logger instance (for dependency injection).
func CreateLogger() core.Logger {
	debugMode := IsDebug()
	bootstrap := NewAppLoggerWithConfig(os.Stderr, false)
	output, fileHandle := createDebugFileOutput(bootstrap.Warn)

	logger := NewAppLoggerWithConfig(output, debugMode)
	logger.fileHandle = fileHandle
	return logger
}
