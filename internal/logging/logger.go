// Package logging provides the leveled console logger and its optional
// rolling file sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"

	"github.com/backmassage/scopemux/internal/config"
	"github.com/backmassage/scopemux/internal/term"
)

// Logger writes timestamped, leveled lines to the console and, when
// configured, to a size-rotated log file. Quiet mode keeps warnings and
// errors on the console and drops the rest; the file sink always
// receives every line.
type Logger struct {
	mu    sync.Mutex
	quiet bool
	sink  io.WriteCloser
}

// NewLogger configures terminal colors from cfg and attaches the rolling
// file sink when cfg.LogFile is set. The sink opens lazily on first
// write. Call Close when done.
func NewLogger(cfg *config.Config) *Logger {
	term.Configure(cfg.ColorMode)
	l := &Logger{quiet: cfg.Quiet}
	if cfg.LogFile != "" {
		l.sink = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	return l
}

// Close closes the file sink if one was attached.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink == nil {
		return nil
	}
	err := l.sink.Close()
	l.sink = nil
	return err
}

func (l *Logger) line(level, color, text string) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	plain := ts + " [" + level + "] " + text + "\n"
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.quiet || level == "WARN" || level == "ERROR" {
		out := os.Stdout
		if level == "ERROR" {
			out = os.Stderr
		}
		if color != "" {
			_, _ = io.WriteString(out, ts+" "+color+"["+level+"]"+term.NC+" "+text+"\n")
		} else {
			_, _ = io.WriteString(out, plain)
		}
	}
	if l.sink != nil {
		_, _ = io.WriteString(l.sink, plain)
	}
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.line("INFO", term.Blue, fmt.Sprintf(format, args...))
}

// Success logs at SUCCESS level (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.line("SUCCESS", term.Green, fmt.Sprintf(format, args...))
}

// Warn logs at WARN level (yellow). Printed even in quiet mode.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.line("WARN", term.Yellow, fmt.Sprintf(format, args...))
}

// Error logs at ERROR level (red) to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.line("ERROR", term.Red, fmt.Sprintf(format, args...))
}

// Outlier logs at OUTLIER level (orange), for results that are valid but
// unexpected.
func (l *Logger) Outlier(format string, args ...interface{}) {
	l.line("OUTLIER", term.Orange, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level (cyan) only when verbose; no-op otherwise.
func (l *Logger) Debug(verbose bool, format string, args ...interface{}) {
	if !verbose {
		return
	}
	l.line("DEBUG", term.Cyan, fmt.Sprintf(format, args...))
}
