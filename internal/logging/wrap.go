package logging

import (
	"context"
	"log/slog"
)

// Handler wrappers that assemble the daemon's logging topology: a tee that
// feeds records to several sinks, a per-logger level floor, and a stamp
// that tags every record with fixed attributes such as the session id.

type teeHandler struct {
	sinks []slog.Handler
}

func newTeeHandler(sinks ...slog.Handler) slog.Handler {
	live := make([]slog.Handler, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return noopHandler{}
	case 1:
		return live[0]
	default:
		return &teeHandler{sinks: live}
	}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range t.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, s := range t.sinks {
		if !s.Enabled(ctx, record.Level) {
			continue
		}
		// Each sink gets its own copy; handlers may mutate the record.
		if err := s.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.remap(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	return t.remap(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (t *teeHandler) remap(f func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(t.sinks))
	for i, s := range t.sinks {
		next[i] = f(s)
	}
	return &teeHandler{sinks: next}
}

// TeeLogger returns a logger whose records also reach the extra handlers.
// The daemon uses it to feed the always-on debug log file alongside the
// configured output.
func TeeLogger(base *slog.Logger, extra ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newTeeHandler(extra...))
	}
	return slog.New(newTeeHandler(append([]slog.Handler{base.Handler()}, extra...)...))
}

// levelFloorHandler raises the minimum level for one logger without
// touching the shared handler chain underneath it.
type levelFloorHandler struct {
	next  slog.Handler
	floor slog.Level
}

func (h *levelFloorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.floor && h.next.Enabled(ctx, level)
}

func (h *levelFloorHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.floor {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelFloorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelFloorHandler{next: h.next.WithAttrs(attrs), floor: h.floor}
}

func (h *levelFloorHandler) WithGroup(name string) slog.Handler {
	return &levelFloorHandler{next: h.next.WithGroup(name), floor: h.floor}
}

func (h *levelFloorHandler) CloneWithLevel(level slog.Level) slog.Handler {
	return &levelFloorHandler{next: h.next, floor: level}
}

// WithLevelOverride returns a logger with its own minimum level, keeping
// the attributes and sinks already wired into logger. Used for per-stage
// log level overrides.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return slog.New(noopHandler{})
	}
	if c, ok := logger.Handler().(interface{ CloneWithLevel(slog.Level) slog.Handler }); ok {
		return slog.New(c.CloneWithLevel(level))
	}
	return slog.New(&levelFloorHandler{next: logger.Handler(), floor: level})
}

// FieldSessionID tags every record of one daemon run.
const FieldSessionID = "session_id"

// stampHandler appends fixed attributes to every record passing through.
type stampHandler struct {
	next  slog.Handler
	attrs []slog.Attr
}

func newStampHandler(next slog.Handler, attrs ...slog.Attr) slog.Handler {
	if next == nil {
		return noopHandler{}
	}
	if len(attrs) == 0 {
		return next
	}
	return &stampHandler{next: next, attrs: attrs}
}

func (h *stampHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *stampHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(h.attrs...)
	return h.next.Handle(ctx, record)
}

func (h *stampHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stampHandler{next: h.next.WithAttrs(attrs), attrs: h.attrs}
}

func (h *stampHandler) WithGroup(name string) slog.Handler {
	return &stampHandler{next: h.next.WithGroup(name), attrs: h.attrs}
}
