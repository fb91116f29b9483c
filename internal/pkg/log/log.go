package log

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
)

type contextKey string

const contextKeyRequestID contextKey = "request_id"

var (
	mu      sync.Mutex
	out     io.Writer = color.Output
	debugOn atomic.Bool
)

// SetOutput redirects all log lines, mainly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetDebug turns Debug and DebugStruct on or off
func SetDebug(enabled bool) {
	debugOn.Store(enabled)
}

// WithRequestID adds request ID to context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// RequestID retrieves request ID from context
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// formatLog formats log message with optional request ID
func formatLog(level string, requestID string, format string, a ...interface{}) string {
	msg := fmt.Sprintf(format, a...)
	if requestID != "" {
		return fmt.Sprintf("[%s] [req_id=%s] %s", level, requestID, msg)
	}
	return fmt.Sprintf("[%s] %s", level, msg)
}

func write(prefix string, line string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%s %s\n", prefix, line)
}

var (
	infoPrefix  = color.New(color.FgWhite, color.BgGreen).SprintFunc()("[INFO] ")
	warnPrefix  = color.New(color.FgWhite, color.BgYellow).SprintFunc()("[WARN] ")
	errorPrefix = color.New(color.FgRed).SprintFunc()("[Error]")
	debugPrefix = color.New(color.FgCyan).SprintFunc()("[DEBUG]")
)

// Info log information
func Info(format string, a ...interface{}) {
	write(infoPrefix, fmt.Sprintf(format, a...))
}

// InfoWithContext logs information with context (includes request ID if available)
func InfoWithContext(ctx context.Context, format string, a ...interface{}) {
	write(infoPrefix, formatLog("INFO", RequestID(ctx), format, a...))
}

// Warn log warning
func Warn(format string, a ...interface{}) {
	write(warnPrefix, fmt.Sprintf(format, a...))
}

// WarnWithContext logs warning with context (includes request ID if available)
func WarnWithContext(ctx context.Context, format string, a ...interface{}) {
	write(warnPrefix, formatLog("WARN", RequestID(ctx), format, a...))
}

// Error log error
func Error(format string, a ...interface{}) {
	write(errorPrefix, fmt.Sprintf(format, a...))
}

// ErrorWithContext logs error with context (includes request ID if available)
func ErrorWithContext(ctx context.Context, format string, a ...interface{}) {
	write(errorPrefix, formatLog("ERROR", RequestID(ctx), format, a...))
}

// Debug logs only when debug output is enabled
func Debug(format string, a ...interface{}) {
	if !debugOn.Load() {
		return
	}
	write(debugPrefix, fmt.Sprintf(format, a...))
}

// DebugStruct dumps values with spew when debug output is enabled
func DebugStruct(label string, a ...interface{}) {
	if !debugOn.Load() {
		return
	}
	write(debugPrefix, label+"\n"+spew.Sdump(a...))
}
