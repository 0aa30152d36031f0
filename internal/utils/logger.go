package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Logger writes timestamped lines to the console and, when enabled, appends
// the same lines to a log file. The file handle is best effort: if the file
// cannot be opened the logger keeps working console-only.
type Logger struct {
	file *os.File
	out  io.Writer
}

// NewLogger opens logFile for appending when enabled is true. A failure to
// open the file is reported on stderr and the logger falls back to
// console-only output.
func NewLogger(logFile string, enabled bool) *Logger {
	logger := &Logger{out: os.Stdout}
	if !enabled || logFile == "" {
		return logger
	}

	_ = os.MkdirAll(filepath.Dir(logFile), 0o755)

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to open log file %s: %v\n", logFile, err)
		return logger
	}
	logger.file = f
	return logger
}

// NewConsoleLogger returns a logger writing only to the given writer.
// Used by tests to capture output.
func NewConsoleLogger(out io.Writer) *Logger {
	return &Logger{out: out}
}

// Write emits a single timestamped line: [YYYY-MM-DD HH:MM:SS] message.
func (l *Logger) Write(message string) {
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), message)
	out := l.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprint(out, line)
	if l.file != nil {
		l.file.WriteString(line)
		l.file.Sync()
	}
}

// Writef formats and writes a timestamped line.
func (l *Logger) Writef(format string, args ...interface{}) {
	l.Write(fmt.Sprintf(format, args...))
}

// Close flushes and closes the underlying file handle.
func (l *Logger) Close() {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

// File returns the underlying write file handle when available.
func (l *Logger) File() *os.File {
	if l == nil {
		return nil
	}
	return l.file
}
