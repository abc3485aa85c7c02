package pipeline

import (
	"time"

	"unspool/internal/audio"
	"unspool/internal/catalog"
	"unspool/internal/container"
	"unspool/internal/dedup"
	"unspool/internal/fingerprint"
)

// State is the terminal fate of one input file.
type State string

const (
	// StateUnlocked means the file was decrypted, classified, and placed.
	StateUnlocked State = "unlocked"
	// StateFailed means a stage failed; Stage and Err say which and why.
	StateFailed State = "failed"
	// StateSkipped means cancellation arrived before the file was done.
	StateSkipped State = "skipped"
)

// Stage names a pipeline step.
type Stage string

const (
	StageDetect      Stage = "detect"
	StageParse       Stage = "parse"
	StageDecrypt     Stage = "decrypt"
	StageReconstruct Stage = "reconstruct"
	StageClassify    Stage = "classify"
	StagePlace       Stage = "place"
)

// Warning records a non-fatal defect hit while processing a file.
type Warning struct {
	Stage   Stage
	Message string
}

// Result reports the fate of one input file. Every input yields exactly
// one result whether it unlocked, failed, or was skipped. Output is where
// the file ended up: the placed track on success, or the held source when
// a failure was routed to review.
type Result struct {
	Input string
	Index int

	State State
	Stage Stage
	Err   error

	Outcome  dedup.Outcome
	Match    dedup.Match
	Output   string
	Format   container.Format
	Codec    audio.Codec
	Hash     string
	MetaKey  string
	Title    string
	Artists  []string
	Album    string
	Duration time.Duration
	Size     int64
	Warnings []Warning
	Elapsed  time.Duration
}

// Tally sums a batch by terminal state and dedup outcome.
type Tally struct {
	Added      int
	Duplicates int
	Conflicts  int
	Failed     int
	Skipped    int
}

// BatchReport is the outcome of one RunBatch call.
type BatchReport struct {
	BatchID string
	Started time.Time
	Elapsed time.Duration
	Results []Result
}

// Tally counts the batch's results by what happened to them.
func (r *BatchReport) Tally() Tally {
	var t Tally
	for _, res := range r.Results {
		switch res.State {
		case StateFailed:
			t.Failed++
		case StateSkipped:
			t.Skipped++
		case StateUnlocked:
			switch res.Outcome {
			case dedup.OutcomeAdded:
				t.Added++
			case dedup.OutcomeDuplicate:
				t.Duplicates++
			case dedup.OutcomeConflict:
				t.Conflicts++
			}
		}
	}
	return t
}

// Entries builds catalog entries for the tracks this batch added to the
// library.
func (r *BatchReport) Entries() []catalog.Entry {
	var entries []catalog.Entry
	for _, res := range r.Results {
		if res.State != StateUnlocked || res.Outcome != dedup.OutcomeAdded {
			continue
		}
		entries = append(entries, catalog.Entry{
			Hash:        res.Hash,
			MetaKey:     res.MetaKey,
			Path:        res.Output,
			Title:       res.Title,
			Artists:     res.Artists,
			Album:       res.Album,
			DurationSec: fingerprint.RoundSeconds(res.Duration),
			Size:        res.Size,
		})
	}
	return entries
}
