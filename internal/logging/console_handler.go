package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders records for humans watching a terminal: a
// single header line per record, indented detail bullets at info level,
// and the full attribute dump at debug level.
type consoleHandler struct {
	mu        sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	bound     []slog.Attr
	groups    []string
	addSource bool
	// lastInfo remembers detail values per subject so unchanged fields
	// are not repeated on consecutive info lines.
	lastInfo map[string]map[string]string
}

func newConsoleHandler(out io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{
		out:       out,
		level:     lvl,
		addSource: addSource,
		lastInfo:  make(map[string]map[string]string),
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.shallowClone()
	next.bound = append(append([]slog.Attr(nil), h.bound...), attrs...)
	return next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	next := h.shallowClone()
	next.groups = append(append([]string(nil), h.groups...), name)
	return next
}

func (h *consoleHandler) shallowClone() *consoleHandler {
	return &consoleHandler{
		out:       h.out,
		level:     h.level,
		bound:     h.bound,
		groups:    h.groups,
		addSource: h.addSource,
		lastInfo:  h.lastInfo,
	}
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	var attrs []kv
	flattenAttrs(&attrs, h.groups, h.bound)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&attrs, h.groups, attr)
		return true
	})
	attrs = dedupeKVsByKey(attrs)

	var component, itemID, stage string
	rest := attrs[:0]
	for _, a := range attrs {
		switch a.key {
		case "component":
			if component == "" {
				component = attrString(a.value)
			}
			continue
		case FieldItemID:
			if itemID == "" {
				itemID = attrString(a.value)
			}
		case FieldStage:
			if stage == "" {
				stage = attrString(a.value)
			}
		}
		rest = append(rest, a)
	}

	var buf bytes.Buffer
	h.writeHeader(&buf, record, component, itemID, stage)

	if record.Level < slog.LevelInfo {
		// Debug gets every attribute, unfiltered.
		for _, a := range rest {
			buf.WriteString("    ")
			buf.WriteString(a.key)
			buf.WriteString(": ")
			buf.WriteString(formatValue(a.value))
			buf.WriteByte('\n')
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		_, err := h.out.Write(buf.Bytes())
		return err
	}

	fields, hidden := selectInfoFields(rest, 0, true)

	h.mu.Lock()
	defer h.mu.Unlock()
	fields = h.dropUnchanged(infoSummaryKey(component, itemID, stage, rest), fields, record.Level)
	for _, field := range fields {
		buf.WriteString("    - ")
		buf.WriteString(field.label)
		buf.WriteString(": ")
		buf.WriteString(field.value)
		buf.WriteByte('\n')
	}
	if hidden > 0 {
		buf.WriteString("    + ")
		buf.WriteString(strconv.Itoa(hidden))
		if hidden == 1 {
			buf.WriteString(" more field hidden\n")
		} else {
			buf.WriteString(" more fields hidden\n")
		}
	}
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) writeHeader(buf *bytes.Buffer, record slog.Record, component, itemID, stage string) {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if component != "" {
		buf.WriteString(" [")
		buf.WriteString(component)
		buf.WriteByte(']')
	}
	if subject := FormatSubject(itemID, stage); subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	buf.WriteString(" – ")
	buf.WriteString(message)
	if h.addSource {
		if src := record.Source(); src != nil {
			buf.WriteString(" [")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(']')
		}
	}
	buf.WriteByte('\n')
}

// dropUnchanged suppresses detail fields whose value matches what was
// last printed for the same subject. Warnings and errors always print
// everything but still refresh the cache.
func (h *consoleHandler) dropUnchanged(subject string, fields []infoField, level slog.Level) []infoField {
	if subject == "" || len(fields) == 0 {
		return fields
	}
	cache := h.lastInfo[subject]
	if cache == nil {
		cache = make(map[string]string)
		h.lastInfo[subject] = cache
	}
	if level > slog.LevelInfo {
		for _, f := range fields {
			cache[f.label] = f.value
		}
		return fields
	}
	kept := fields[:0]
	for _, f := range fields {
		if prev, ok := cache[f.label]; ok && prev == f.value {
			continue
		}
		cache[f.label] = f.value
		kept = append(kept, f)
	}
	return kept
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeKVsByKey keeps the first position of each key with its last
// value, matching slog semantics where later attrs win.
func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	at := make(map[string]int, len(attrs))
	out := attrs[:0]
	for _, a := range attrs {
		if a.key == "" {
			continue
		}
		if pos, ok := at[a.key]; ok {
			out[pos].value = a.value
			continue
		}
		at[a.key] = len(out)
		out = append(out, a)
	}
	return out
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		parts := prefix
		if key != "" {
			parts = append(append([]string(nil), prefix...), key)
		}
		key = strings.Join(parts, ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
