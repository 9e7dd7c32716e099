package service

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/GoSim-25-26J-441/plot-registry/internal/api/http/middleware"
)

// Log levels, lowest first.
const (
	LevelDebug int32 = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]int32{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

var minLevel atomic.Int32

func init() { minLevel.Store(LevelInfo) }

// SetLogLevel drops service log lines below the named level.
func SetLogLevel(name string) error {
	lvl, ok := levelNames[name]
	if !ok {
		return fmt.Errorf("unknown log level %q", name)
	}
	minLevel.Store(lvl)
	return nil
}

func enabled(lvl int32) bool { return lvl >= minLevel.Load() }

// Logger provides structured logging for services
type Logger struct {
	requestID string
}

// NewLogger creates a logger with request context
func NewLogger(ctx context.Context) *Logger {
	requestID := "unknown"
	if rid := middleware.GetRequestID(ctx); rid != "" {
		requestID = rid
	}
	return &Logger{requestID: requestID}
}

// LogError logs an error with context
func (l *Logger) LogError(operation string, err error) {
	log.Printf("[error] request_id=%s operation=%s error=%v", l.requestID, operation, err)
}

// LogInfof logs a formatted info message with context
func (l *Logger) LogInfof(operation string, format string, args ...interface{}) {
	if !enabled(LevelInfo) {
		return
	}
	log.Printf("[info] request_id=%s operation=%s "+format, append([]interface{}{l.requestID, operation}, args...)...)
}

// LogWarnf logs a formatted warning with context
func (l *Logger) LogWarnf(operation string, format string, args ...interface{}) {
	if !enabled(LevelWarn) {
		return
	}
	log.Printf("[warn] request_id=%s operation=%s "+format, append([]interface{}{l.requestID, operation}, args...)...)
}
