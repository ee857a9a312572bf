package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
	FatalLevel = "fatal"
)

var (
	mu            sync.RWMutex
	defaultLogger *zap.Logger
)

func init() {
	// Console logger at info until the server applies its config
	_ = InitLogger(InfoLevel, "")
}

// ParseLevel maps a level name to a zap level. Unknown names fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger replaces the package logger. Entries go to stdout with a console
// encoder, or to filePath as JSON when it is set.
func InitLogger(level, filePath string) error {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var core zapcore.Core
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), ParseLevel(level))
	} else {
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), ParseLevel(level))
	}

	SetLogger(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
	return nil
}

// SetLogger installs l as the package logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// L returns the package logger for callers that need a *zap.Logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func sugar() *zap.SugaredLogger {
	return L().Sugar()
}

// Debug logs a debug message with key-value pairs
func Debug(msg string, keysAndValues ...interface{}) {
	sugar().Debugw(msg, keysAndValues...)
}

// Info logs an info message with key-value pairs
func Info(msg string, keysAndValues ...interface{}) {
	sugar().Infow(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func Warn(msg string, keysAndValues ...interface{}) {
	sugar().Warnw(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func Error(msg string, keysAndValues ...interface{}) {
	sugar().Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal message with key-value pairs and exits
func Fatal(msg string, keysAndValues ...interface{}) {
	sugar().Fatalw(msg, keysAndValues...)
}

// With creates a child logger carrying the given pairs
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return sugar().With(keysAndValues...)
}

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}
