// Package logger is the process-wide log. Debug and info lines appear only
// with --verbose; warnings and errors always do. Everything goes to stderr
// so it never mixes with answers streamed on stdout.
//
// The printf helpers and Slog share one handler, so code that logs through
// log/slog after slog.SetDefault(logger.Slog()) gets the same format.
package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr

	std = slog.New(&handler{})
)

func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects every log line to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

func Output() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return output
}

// Slog returns a slog.Logger writing through this package.
func Slog() *slog.Logger {
	return std
}

func Debug(format string, args ...any) { logf(slog.LevelDebug, format, args) }
func Info(format string, args ...any)  { logf(slog.LevelInfo, format, args) }
func Warn(format string, args ...any)  { logf(slog.LevelWarn, format, args) }
func Error(format string, args ...any) { logf(slog.LevelError, format, args) }

func logf(level slog.Level, format string, args []any) {
	ctx := context.Background()
	if !std.Enabled(ctx, level) {
		return
	}
	std.Log(ctx, level, fmt.Sprintf(format, args...))
}

// Section prints a header between phases in verbose mode.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Timer returns a func that logs the time since Timer was called at debug level.
//
//	defer logger.Timer("embed batch")()
func Timer(name string) func() {
	start := time.Now()
	return func() {
		Debug("%s took %s", name, time.Since(start).Round(time.Millisecond))
	}
}

// Raw writes line as is, at any verbosity.
func Raw(line string) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintln(output, line)
}

// handler renders "[LEVEL] message key=value ...". Attrs bound with
// WithAttrs carry the group prefix in effect when they were bound.
type handler struct {
	attrs  []slog.Attr
	prefix string
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn || IsVerbose()
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	var b bytes.Buffer
	b.WriteString("[" + r.Level.String() + "] ")
	b.WriteString(r.Message)

	write := func(prefix string, a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		fmt.Fprintf(&b, " %s%s=%s", prefix, a.Key, quote(a.Value.String()))
	}
	for _, a := range h.attrs {
		write("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	mu.RLock()
	defer mu.RUnlock()
	_, err := output.Write(b.Bytes())
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
