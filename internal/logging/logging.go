// Package logging builds the slog loggers used across the module.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// New returns a logger writing to w in the configured format and level.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
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

// FromLogger wraps a caller-supplied Logger so internal components can keep
// taking *slog.Logger.
func FromLogger(l types.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return slog.New(slogAdapter{logger: l})
}

type slogAdapter struct {
	attrs  []slog.Attr
	logger types.Logger
	group  string
}

func (a slogAdapter) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

//nolint:gocritic // slog.Handler requires passing Record by value
func (a slogAdapter) Handle(ctx context.Context, r slog.Record) error {
	args := make([]any, 0, (len(a.attrs)+r.NumAttrs())*2)

	// Stored attrs were qualified when they were added.
	for _, attr := range a.attrs {
		args = append(args, attr.Key, attr.Value.Any())
	}
	r.Attrs(func(attr slog.Attr) bool {
		args = append(args, a.key(attr.Key), attr.Value.Any())
		return true
	})

	switch {
	case r.Level < slog.LevelInfo:
		a.logger.Debug(r.Message, args...)
	case r.Level < slog.LevelWarn:
		a.logger.Info(r.Message, args...)
	case r.Level < slog.LevelError:
		a.logger.Warn(r.Message, args...)
	default:
		a.logger.Error(r.Message, args...)
	}
	return nil
}

func (a slogAdapter) key(k string) string {
	if a.group == "" {
		return k
	}
	return a.group + "." + k
}

func (a slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(a.attrs)+len(attrs))
	next = append(next, a.attrs...)
	for _, attr := range attrs {
		attr.Key = a.key(attr.Key)
		next = append(next, attr)
	}
	return slogAdapter{logger: a.logger, attrs: next, group: a.group}
}

func (a slogAdapter) WithGroup(name string) slog.Handler {
	if name == "" {
		return a
	}
	group := name
	if a.group != "" {
		group = a.group + "." + name
	}
	return slogAdapter{logger: a.logger, attrs: a.attrs, group: group}
}
