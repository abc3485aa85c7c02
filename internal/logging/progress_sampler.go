package logging

import (
	"math"
	"strings"
)

// ProgressSampler thins out progress logging: a line is worth emitting
// when the stage label changes or the percentage crosses into a new
// bucket, so a long decrypt logs a handful of lines instead of hundreds.
type ProgressSampler struct {
	bucket float64
	stage  string
	seen   int
}

// NewProgressSampler builds a sampler with the given bucket width in
// percent. Widths <= 0 fall back to 5.
func NewProgressSampler(bucket float64) *ProgressSampler {
	if bucket <= 0 {
		bucket = 5
	}
	return &ProgressSampler{bucket: bucket, seen: -1}
}

// ShouldLog reports whether this progress point deserves a log line.
// Negative percent means unknown progress and only stage changes emit.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage = stage
		s.seen = -1
		emit = true
	}
	if percent >= 0 {
		b := int(math.Min(percent, 100) / s.bucket)
		if b > s.seen {
			s.seen = b
			emit = true
		}
	}
	return emit
}

// Reset prepares the sampler for the next item.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.stage = ""
	s.seen = -1
}
