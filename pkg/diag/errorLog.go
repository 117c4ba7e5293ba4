// Package diag provides the diagnostic stream appenders report their failures to.
//
// Reports go to a plain *log.Logger, never to a zap or zerolog logger an appender
// may be attached to.
package diag

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zoff-tech/go-amqplog/pkg/config"
)

const (
	OutputStderr = "stderr"
	OutputFile   = "file"

	defaultMaxSize    = 100 // MB
	defaultMaxBackups = 3
	defaultMaxAge     = 7 // days

	prefix = "[amqplog] "
)

// NewErrorLog returns the logger described by cfg and a function releasing its
// output. Unknown outputs and unusable file paths fall back to stderr, which is
// never closed.
func NewErrorLog(cfg config.ErrorLog) (*log.Logger, func() error) {
	w := writerFor(cfg)
	closeFn := func() error { return nil }
	if lj, ok := w.(*lumberjack.Logger); ok {
		closeFn = lj.Close
	}
	return NewErrorLogWithWriter(w), closeFn
}

// NewErrorLogWithWriter is NewErrorLog for an arbitrary writer.
func NewErrorLogWithWriter(w io.Writer) *log.Logger {
	return log.New(w, prefix, log.LstdFlags)
}

func writerFor(cfg config.ErrorLog) io.Writer {
	switch cfg.Output {
	case OutputFile:
		return newRotatingWriter(cfg)
	case OutputStderr, "":
		return os.Stderr
	default:
		log.Printf("unknown error_log output %q, falling back to stderr", cfg.Output)
		return os.Stderr
	}
}

func newRotatingWriter(cfg config.ErrorLog) io.Writer {
	if cfg.FilePath == "" {
		log.Printf("error_log output=file without file_path, falling back to stderr")
		return os.Stderr
	}

	if dir := filepath.Dir(cfg.FilePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Printf("cannot create error_log directory %q: %v, falling back to stderr", dir, err)
			return os.Stderr
		}
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    orDefault(cfg.MaxSize, defaultMaxSize),
		MaxBackups: orDefault(cfg.MaxBackups, defaultMaxBackups),
		MaxAge:     orDefault(cfg.MaxAge, defaultMaxAge),
		Compress:   cfg.Compress,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
