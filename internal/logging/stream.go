package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent is one structured log line as seen by stream consumers (the
// CLI's follow mode and the on-disk event journal).
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	Stage         string            `json:"stage,omitempty"`
	ItemID        int64             `json:"item_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Details       []DetailField     `json:"details,omitempty"`
}

// DetailField mirrors the console handler's indented info lines.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// LogEventSink receives every published event, e.g. for persistence.
type LogEventSink interface {
	Append(LogEvent)
}

// StreamHub keeps a bounded ring of recent log events and wakes blocked
// readers when new events arrive. A nil hub is safe to use everywhere.
type StreamHub struct {
	mu    sync.Mutex
	ring  []LogEvent
	head  int // index of the oldest buffered event
	count int
	seq   uint64
	wake  chan struct{} // closed and replaced on every publish
	sinks []LogEventSink
}

// NewStreamHub builds a hub buffering up to capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &StreamHub{
		ring: make([]LogEvent, capacity),
		wake: make(chan struct{}),
	}
}

// AddSink registers a sink that sees every event published afterwards.
func (h *StreamHub) AddSink(sink LogEventSink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish assigns the next sequence number and buffers the event,
// evicting the oldest one when the ring is full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.seq++
	evt.Sequence = h.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	slot := (h.head + h.count) % len(h.ring)
	h.ring[slot] = evt
	if h.count < len(h.ring) {
		h.count++
	} else {
		h.head = (h.head + 1) % len(h.ring)
	}
	sinks := append([]LogEventSink(nil), h.sinks...)
	close(h.wake)
	h.wake = make(chan struct{})
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
}

// Fetch returns up to limit events with sequence greater than since. With
// wait set, it blocks until an event arrives or ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	for {
		h.mu.Lock()
		events := h.afterLocked(since, limit)
		next := h.seq
		wake := h.wake
		h.mu.Unlock()

		if len(events) > 0 || !wait {
			return events, next, ctxErr(ctx)
		}
		if ctx == nil {
			<-wake
			continue
		}
		select {
		case <-ctx.Done():
			return nil, next, ctx.Err()
		case <-wake:
		}
	}
}

// Tail returns the newest limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > h.count {
		limit = h.count
	}
	out := make([]LogEvent, 0, limit)
	for i := h.count - limit; i < h.count; i++ {
		out = append(out, h.ring[(h.head+i)%len(h.ring)])
	}
	if len(out) == 0 {
		return nil, h.seq
	}
	return out, h.seq
}

// FirstSequence reports the oldest sequence number still buffered.
func (h *StreamHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return h.seq
	}
	return h.ring[h.head].Sequence
}

func (h *StreamHub) afterLocked(since uint64, limit int) []LogEvent {
	if limit <= 0 || limit > len(h.ring) {
		limit = len(h.ring)
	}
	var out []LogEvent
	for i := 0; i < h.count && len(out) < limit; i++ {
		evt := h.ring[(h.head+i)%len(h.ring)]
		if evt.Sequence > since {
			out = append(out, evt)
		}
	}
	return out
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// streamHandler publishes every record to the hub before handing it to
// the wrapped handler. Attrs attached via With are folded into the event.
type streamHandler struct {
	next  slog.Handler
	hub   *StreamHub
	bound []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(h.eventFrom(record))
	return h.next.Handle(ctx, record.Clone())
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make([]slog.Attr, 0, len(h.bound)+len(attrs))
	bound = append(bound, h.bound...)
	bound = append(bound, attrs...)
	return &streamHandler{next: h.next.WithAttrs(attrs), hub: h.hub, bound: bound}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), hub: h.hub, bound: h.bound}
}

func (h *streamHandler) eventFrom(record slog.Record) LogEvent {
	event := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
		Fields:    make(map[string]string),
	}

	absorb := func(attr slog.Attr) {
		key := strings.TrimSpace(attr.Key)
		switch key {
		case "":
		case FieldItemID:
			event.ItemID = attr.Value.Int64()
		case FieldStage:
			event.Stage = attrString(attr.Value)
		case FieldCorrelationID:
			event.CorrelationID = attrString(attr.Value)
		case "component":
			event.Component = attrString(attr.Value)
		default:
			event.Fields[key] = attrString(attr.Value)
		}
	}

	for _, attr := range h.bound {
		absorb(attr)
	}
	// Call-site attrs win over bound attrs for the same key.
	var attrs []kv
	record.Attrs(func(attr slog.Attr) bool {
		absorb(attr)
		if key := strings.TrimSpace(attr.Key); key != "" {
			attrs = append(attrs, kv{key: key, value: attr.Value})
		}
		return true
	})

	if info, _ := selectInfoFields(attrs, infoAttrLimit, false); len(info) > 0 {
		event.Details = make([]DetailField, 0, len(info))
		for _, field := range info {
			event.Details = append(event.Details, DetailField{Label: field.label, Value: field.value})
		}
	}
	return event
}
