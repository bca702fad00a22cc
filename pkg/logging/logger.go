package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/offlinefirst/eyetrace/pkg/config"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New builds a logger from the logging section of the configuration.
// Records go to out (stderr when nil) with UTC RFC 3339 timestamps.
func New(cfg config.LoggingConfig, out io.Writer) (*slog.Logger, error) {
	level, err := config.NormalizeLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := config.NormalizeFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: levels[level], ReplaceAttr: utcTime}
	if format == "console" {
		return slog.New(slog.NewTextHandler(out, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(out, opts)), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func utcTime(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key == slog.TimeKey && attr.Value.Kind() == slog.KindTime {
		attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
	}
	return attr
}
