// Package dedup classifies unlocked tracks against the library catalog.
//
// A track whose content hash already exists is a duplicate. A track whose
// hash is new but whose normalized metadata key matches an existing entry
// is a conflict: probably the same recording in a different encoding.
// Hash matching always wins over metadata matching.
package dedup

import (
	"sync"

	"unspool/internal/catalog"
)

// Outcome is the dedup verdict for a single track.
type Outcome string

const (
	// OutcomeAdded marks a track new to the library.
	OutcomeAdded Outcome = "added"
	// OutcomeDuplicate marks a track whose exact bytes are already present.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeConflict marks a probable re-encode of an existing track.
	OutcomeConflict Outcome = "conflict"
)

// Match describes what a track was judged against.
type Match struct {
	Outcome Outcome

	// Path is the library path of the matched track, or the batch source
	// path when the match is against another file in the same batch.
	Path string

	// Entry is the matched catalog entry. Nil for in-batch matches.
	Entry *catalog.Entry
}

// Detector classifies tracks against an immutable catalog snapshot while
// tracking what the current batch has already claimed, so two identical
// files arriving together yield one addition and one duplicate.
type Detector struct {
	snap *catalog.Snapshot

	mu         sync.Mutex
	hashClaims map[string]string // content hash -> source path that added it
	metaClaims map[string]string // metadata key -> source path that added it
}

// NewDetector builds a detector over the given snapshot. A nil snapshot
// behaves like an empty library.
func NewDetector(snap *catalog.Snapshot) *Detector {
	return &Detector{
		snap:       snap,
		hashClaims: make(map[string]string),
		metaClaims: make(map[string]string),
	}
}

// Classify judges one track and, when it is an addition, claims its hash
// and metadata key on behalf of source. An empty metaKey disables metadata
// matching for the track. Safe for concurrent use.
func (d *Detector) Classify(hash, metaKey, source string) Match {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.snap.Lookup(hash); ok {
		return Match{Outcome: OutcomeDuplicate, Path: entry.Path, Entry: &entry}
	}
	if claimed, ok := d.hashClaims[hash]; ok {
		return Match{Outcome: OutcomeDuplicate, Path: claimed}
	}

	if metaKey != "" {
		if hits := d.snap.LookupMetaKey(metaKey); len(hits) > 0 {
			entry := hits[0]
			return Match{Outcome: OutcomeConflict, Path: entry.Path, Entry: &entry}
		}
		if claimed, ok := d.metaClaims[metaKey]; ok {
			return Match{Outcome: OutcomeConflict, Path: claimed}
		}
	}

	// Only additions claim: a track routed to the duplicates directory
	// never enters the library, so later files must still be judged
	// against the catalog, not against it.
	d.hashClaims[hash] = source
	if metaKey != "" {
		d.metaClaims[metaKey] = source
	}
	return Match{Outcome: OutcomeAdded}
}
