// Package logging builds the process logger. Output goes to stderr unless a
// log file is configured, in which case it is rotated by size.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level     string
	Format    string
	File      string
	MaxSizeMB int
	MaxFiles  int
}

const (
	defaultMaxSizeMB = 10
	defaultMaxFiles  = 5
)

// New returns a logger writing to w, or to a rotating file when opts.File is
// set. The returned closer releases the file and is never nil.
func New(opts Options, w io.Writer) (*log.Logger, io.Closer, error) {
	level, err := log.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
	}
	formatter, err := parseFormat(opts.Format)
	if err != nil {
		return nil, nil, err
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating, err := fileWriter(opts)
		if err != nil {
			return nil, nil, err
		}
		w, closer = rotating, rotating
	}
	if w == nil {
		w = os.Stderr
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
	})
	return logger, closer, nil
}

func parseFormat(format string) (log.Formatter, error) {
	switch format {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("unknown log format %q", format)
	}
}

// fileWriter opens opts.File for size-based rotation. Zero size and backup
// limits fall back to the package defaults.
func fileWriter(opts Options) (*lumberjack.Logger, error) {
	maxSize, maxFiles := opts.MaxSizeMB, opts.MaxFiles
	if maxSize <= 0 {
		maxSize = defaultMaxSizeMB
	}
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", opts.File, err)
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: maxFiles,
		LocalTime:  true,
	}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
