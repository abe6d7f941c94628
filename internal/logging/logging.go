// Package logging provides debug logging and log file rotation for qwktool.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DebugEnabled controls whether Debug() produces output.
// Set via --debug flag or DEBUG=1 environment variable.
var DebugEnabled bool

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

// Options configures Setup.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
	Debug      bool
}

// Setup routes the standard logger to stderr and, when File is set, to a
// rotating log file. The returned closer releases the file.
func Setup(opts Options) (io.Closer, error) {
	DebugEnabled = opts.Debug || os.Getenv("DEBUG") == "1"
	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxAge:     opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return rotator, nil
}
