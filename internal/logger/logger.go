// Package logger provides structured logging setup for PartyLedger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Strob0t/PartyLedger/internal/config"
)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record.
// When cfg.File is set, records are also written to a size-rotated file.
// The returned Closer flushes the async handler and closes the log file.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return newWithWriter(cfg, os.Stdout)
}

func newWithWriter(cfg config.Logging, stdout io.Writer) (*slog.Logger, Closer) {
	var (
		out     = stdout
		closers closerChain
	)
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = io.MultiWriter(stdout, file)
		closers = append(closers, func() { _ = file.Close() })
	}

	var handler slog.Handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	if cfg.Async {
		ah := NewAsyncHandler(handler, 4096, 1)
		handler = ah
		// flush before the file goes away
		closers = append(closerChain{ah.Close}, closers...)
	}

	return slog.New(handler).With("service", cfg.Service), closers
}

// closerChain runs its functions in order.
type closerChain []func()

func (c closerChain) Close() {
	for _, fn := range c {
		fn()
	}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
