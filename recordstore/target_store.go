package recordstore

import (
	"github.com/gloudx/recordstore/index"
	"github.com/gloudx/recordstore/predicate"
)

var _ execTarget = (*Store)(nil)

func (s *Store) candidates(p predicate.Predicate) index.RidSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return planCandidates(p, s.mi, s.allRidsLocked)
}

func (s *Store) lookupRecord(rid Rid) *Record {
	return s.snapshotRecord(rid)
}

func (s *Store) lookupMany(rids []Rid) map[Rid]*Record {
	return s.snapshotRecords(rids)
}

func (s *Store) mutateDelete(rid Rid) error {
	return s.Delete(rid)
}

func (s *Store) mutateUpdate(rid Rid, patch map[string]any) error {
	return s.Update(rid, patch)
}

// Select returns a new Query over this store projected to the given
// top-level or dotted field paths (empty = whole record).
func (s *Store) Select(fieldPaths ...string) *Query {
	return newQuery(s, fieldPaths)
}
