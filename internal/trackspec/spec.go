package trackspec

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Envelope captures the structured payload shared between identification,
// unlocking, and ingestion stages.
type Envelope struct {
	Format      string    `json:"format,omitempty"`
	Codec       string    `json:"codec,omitempty"`
	Title       string    `json:"title,omitempty"`
	Artists     []string  `json:"artists,omitempty"`
	Album       string    `json:"album,omitempty"`
	DurationMS  int64     `json:"duration_ms,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	MetaKey     string    `json:"meta_key,omitempty"`
	StagedPath  string    `json:"staged_path,omitempty"`
	Warnings    []Warning `json:"warnings,omitempty"`
}

// Warning records a non-fatal observation made while processing a track.
type Warning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Parse loads an envelope from JSON, returning an empty envelope on blank input.
func Parse(raw string) (Envelope, error) {
	var env Envelope
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return env, nil
	}
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, err
	}
	env.Artists = slices.Clone(env.Artists)
	env.Warnings = slices.Clone(env.Warnings)
	return env, nil
}

// Encode serialises the envelope to JSON.
func (e Envelope) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Duration converts the stored millisecond count back to a duration.
func (e Envelope) Duration() time.Duration {
	if e.DurationMS <= 0 {
		return 0
	}
	return time.Duration(e.DurationMS) * time.Millisecond
}

// ArtistLine joins the artist list for single-field display and storage.
func (e Envelope) ArtistLine() string {
	return strings.Join(e.Artists, ", ")
}

// AddWarning appends a warning unless an identical one is already recorded.
// Stages may re-run after a retry, so repeats are collapsed.
func (e *Envelope) AddWarning(stage, message string) {
	if e == nil || strings.TrimSpace(message) == "" {
		return
	}
	w := Warning{Stage: stage, Message: message}
	if slices.Contains(e.Warnings, w) {
		return
	}
	e.Warnings = append(e.Warnings, w)
}

// WarningLines renders warnings as "stage: message" strings.
func (e Envelope) WarningLines() []string {
	if len(e.Warnings) == 0 {
		return nil
	}
	lines := make([]string, 0, len(e.Warnings))
	for _, w := range e.Warnings {
		if w.Stage == "" {
			lines = append(lines, w.Message)
			continue
		}
		lines = append(lines, w.Stage+": "+w.Message)
	}
	return lines
}

// Unlocked reports whether the envelope carries the products of a completed
// unlock: a staged payload and its content hash.
func (e Envelope) Unlocked() bool {
	return strings.TrimSpace(e.StagedPath) != "" && strings.TrimSpace(e.ContentHash) != ""
}
