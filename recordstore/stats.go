package recordstore

import (
	"github.com/gloudx/recordstore/index"
	"github.com/gloudx/recordstore/valueorder"
)

// Stats summarizes a store's current shape: how many records it holds and,
// per attribute, how many distinct values its index carries and how many
// (value, rid) entries are indexed under it — a cheap substitute for query
// cost estimation.
type Stats struct {
	RecordCount int
	Attrs       map[string]AttrStats
}

// AttrStats is one attribute's index shape.
type AttrStats struct {
	DistinctValues int
	IndexedEntries int
}

// Stats computes a fresh snapshot under a single read-lock hold, so a
// concurrent writer can never leave it looking at some attributes' pre-write
// state and others' post-write state.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrNames := s.mi.Attrs()
	out := Stats{RecordCount: len(s.records), Attrs: make(map[string]AttrStats, len(attrNames))}
	for _, attr := range attrNames {
		ix, ok := s.mi.Lookup(attr)
		if !ok {
			continue
		}
		out.Attrs[attr] = attrStatsOf(ix)
	}
	return out
}

func attrStatsOf(ix *index.Index) AttrStats {
	pairs := ix.IterOrdered(index.Asc)
	var distinct int
	for i, p := range pairs {
		if i == 0 || !valueorder.Equal(pairs[i-1].Value, p.Value) {
			distinct++
		}
	}
	return AttrStats{DistinctValues: distinct, IndexedEntries: len(pairs)}
}
