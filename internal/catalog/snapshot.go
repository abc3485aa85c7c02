package catalog

import "sort"

// Snapshot is an immutable view of the index taken at batch start. It
// supports concurrent lookups without locking; appends made after the
// snapshot are not visible through it.
type Snapshot struct {
	byHash map[string]Entry
	byMeta map[string][]Entry
}

// Snapshot captures the current index contents.
func (c *Catalog) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &Snapshot{
		byHash: make(map[string]Entry, len(c.entries)),
		byMeta: make(map[string][]Entry),
	}
	for hash, entry := range c.entries {
		snap.byHash[hash] = entry
		if entry.MetaKey != "" {
			snap.byMeta[entry.MetaKey] = append(snap.byMeta[entry.MetaKey], entry)
		}
	}
	// Newest first within a key, so lookups resolve to the same entry
	// regardless of map iteration order.
	for _, entries := range snap.byMeta {
		sort.Slice(entries, func(i, j int) bool {
			if !entries[i].AddedAt.Equal(entries[j].AddedAt) {
				return entries[i].AddedAt.After(entries[j].AddedAt)
			}
			return entries[i].Hash < entries[j].Hash
		})
	}
	return snap
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byHash)
}

// Lookup returns the entry with the given content hash.
func (s *Snapshot) Lookup(hash string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	entry, ok := s.byHash[hash]
	return entry, ok
}

// LookupMetaKey returns every entry sharing the normalized metadata key.
// Callers must not mutate the returned slice.
func (s *Snapshot) LookupMetaKey(key string) []Entry {
	if s == nil || key == "" {
		return nil
	}
	return s.byMeta[key]
}
