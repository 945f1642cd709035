package recordstore

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/gloudx/recordstore/index"
	"github.com/gloudx/recordstore/storeerr"
	"github.com/gloudx/recordstore/valueorder"
)

// Rid is the opaque, stable identifier of a record within a store.
type Rid = index.Rid

// Store is the record manager (C): it exclusively owns record storage,
// maintains one ordered index per attribute (B), and serializes access
// through a single reader-writer lock, exactly the locking discipline
// §5 describes — direct writes take the write side, reads and a
// transaction's base-store reads take the read side, and a commit takes
// the write side only for the duration of applying its overlay.
type Store struct {
	mu      sync.RWMutex
	records map[Rid]*Record
	mi      *index.MultiIndex
	nextRid atomic.Int64

	idMu     sync.Mutex
	identity map[Rid]weak.Pointer[View]
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records:  make(map[Rid]*Record),
		mi:       index.NewMultiIndex(),
		identity: make(map[Rid]weak.Pointer[View]),
	}
}

// Create assigns a rid (the record's "id" attribute if it is a number,
// otherwise a fresh monotonic one), indexes every attribute, and returns the rid.
func (s *Store) Create(data map[string]any) (Rid, error) {
	return s.createRecord(newRecordFromMap(data))
}

// CreateWithFields is Create for callers that need to control attribute
// order (a plain Go map has none).
func (s *Store) CreateWithFields(fields ...Field) (Rid, error) {
	return s.createRecord(newRecordFromFields(fields))
}

func (s *Store) createRecord(rec *Record) (Rid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rid, hasID := ridFromRecord(rec)
	if hasID {
		if _, exists := s.records[rid]; exists {
			return 0, storeerr.ErrDuplicate
		}
	} else {
		rid = s.freshRidLocked()
	}
	s.records[rid] = rec
	for _, key := range rec.Keys() {
		v, _ := rec.Get(key)
		s.mi.Attr(key).Insert(v, rid)
	}
	return rid, nil
}

func ridFromRecord(rec *Record) (Rid, bool) {
	v, ok := rec.Get("id")
	if !ok {
		return 0, false
	}
	n, ok := v.AsNumber()
	if !ok {
		return 0, false
	}
	return Rid(int64(n)), true
}

// freshRidLocked allocates an unused rid; caller must already hold s.mu for
// writing.
func (s *Store) freshRidLocked() Rid {
	for {
		rid := Rid(s.nextRid.Add(1))
		if _, exists := s.records[rid]; !exists {
			return rid
		}
	}
}

// reserveRid allocates an unused rid without requiring the caller to hold
// s.mu for writing; used by a transaction staging a create() in its
// overlay before it ever touches the base store's write lock.
func (s *Store) reserveRid() Rid {
	for {
		rid := Rid(s.nextRid.Add(1))
		s.mu.RLock()
		_, exists := s.records[rid]
		s.mu.RUnlock()
		if !exists {
			return rid
		}
	}
}

// createWithRid inserts rec under an already-allocated rid, used when
// committing a transaction's staged create. Caller must not hold s.mu.
func (s *Store) createWithRid(rid Rid, rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rid] = rec
	for _, key := range rec.Keys() {
		v, _ := rec.Get(key)
		s.mi.Attr(key).Insert(v, rid)
	}
}

// CreateMany creates every record atomically: on a mid-batch failure, every
// record already created by this call is rolled back before the error
// surfaces (the Open Question in §9 resolved in favor of atomicity).
func (s *Store) CreateMany(datas []map[string]any) ([]Rid, error) {
	created := make([]Rid, 0, len(datas))
	for _, data := range datas {
		rid, err := s.Create(data)
		if err != nil {
			for _, done := range created {
				_ = s.Delete(done)
			}
			return nil, err
		}
		created = append(created, rid)
	}
	return created, nil
}

// Get returns the live view for rid, fabricating one if the identity map
// doesn't already hold a live reference (invariant R1: one view object per
// rid for as long as any caller keeps it alive).
func (s *Store) Get(rid Rid) (*View, error) {
	s.mu.RLock()
	_, exists := s.records[rid]
	s.mu.RUnlock()
	if !exists {
		return nil, storeerr.ErrNotFound
	}
	return s.viewFor(rid), nil
}

// GetMany returns a live view per rid found; missing rids are silently
// omitted.
func (s *Store) GetMany(rids []Rid) map[Rid]*View {
	out := make(map[Rid]*View, len(rids))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rid := range rids {
		if _, ok := s.records[rid]; ok {
			out[rid] = s.viewFor(rid)
		}
	}
	return out
}

// viewFor implements the identity map described in §4.3 and §9: a weak
// reference keeps exactly one View alive per rid while any caller holds it,
// and a runtime cleanup evicts the map entry once it's collected.
func (s *Store) viewFor(rid Rid) *View {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if wp, ok := s.identity[rid]; ok {
		if v := wp.Value(); v != nil {
			return v
		}
	}
	v := &View{rid: rid, store: s, valid: true}
	s.identity[rid] = weak.Make(v)
	runtime.AddCleanup(v, func(id Rid) {
		s.idMu.Lock()
		defer s.idMu.Unlock()
		if wp, ok := s.identity[id]; ok && wp.Value() == nil {
			delete(s.identity, id)
		}
	}, rid)
	return v
}

// invalidateView marks rid's live view (if any is currently referenced)
// invalid; called under s.mu's write lock by Delete.
func (s *Store) invalidateView(rid Rid) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	if wp, ok := s.identity[rid]; ok {
		if v := wp.Value(); v != nil {
			v.valid = false
		}
	}
}

// Update writes every entry of patch into rid's record and reindexes
// exactly those keys (§4.3's reindexing discipline): for each key, the rid
// is removed from the old value's bucket (if any) and inserted into the
// new one.
func (s *Store) Update(rid Rid, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[rid]
	if !ok {
		return storeerr.ErrNotFound
	}
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	s.applyPatchLocked(rid, rec, keys, func(k string) (valueorder.Value, bool) {
		v, present := patch[k]
		return valueorder.FromGo(v), present
	})
	return nil
}

// applyPatchLocked reindexes keys using newVal(key) as the source of the
// post-mutation state, writing it into rec as it goes. Caller holds s.mu.
func (s *Store) applyPatchLocked(rid Rid, rec *Record, keys []string, newVal func(string) (valueorder.Value, bool)) {
	for _, key := range keys {
		old, hadOld := rec.Get(key)
		if hadOld {
			s.mi.Attr(key).Remove(old, rid)
		}
		nv, present := newVal(key)
		if present {
			rec.set(key, nv)
			s.mi.Attr(key).Insert(nv, rid)
		} else {
			rec.unset(key)
		}
	}
}

// DeleteAttrs removes each key from rid's record and from I_key.
func (s *Store) DeleteAttrs(rid Rid, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[rid]
	if !ok {
		return storeerr.ErrNotFound
	}
	for _, key := range keys {
		if old, had := rec.Get(key); had {
			s.mi.Attr(key).Remove(old, rid)
		}
		rec.unset(key)
	}
	return nil
}

// Delete removes rid from every index, forgets the record, and invalidates
// its live view.
func (s *Store) Delete(rid Rid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[rid]
	if !ok {
		return storeerr.ErrNotFound
	}
	for _, key := range rec.Keys() {
		v, _ := rec.Get(key)
		s.mi.Attr(key).Remove(v, rid)
	}
	delete(s.records, rid)
	s.invalidateView(rid)
	return nil
}

// snapshotRecord returns a defensive copy of rid's current record state, or
// nil if rid doesn't exist. Used by the predicate evaluator and by
// transactions merging overlay state onto the base.
func (s *Store) snapshotRecord(rid Rid) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[rid]
	if !ok {
		return nil
	}
	return rec.clone()
}

// snapshotRecords clones every rid in one critical section, so a query
// reading several candidates can never observe some of them pre-commit and
// others post-commit of the same transaction (§8's concurrent-commit-
// atomicity property).
func (s *Store) snapshotRecords(rids []Rid) map[Rid]*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Rid]*Record, len(rids))
	for _, rid := range rids {
		if rec, ok := s.records[rid]; ok {
			out[rid] = rec.clone()
		}
	}
	return out
}

// allRids returns every rid currently live, used as the candidate universe
// for predicates with no index-assisted leaf.
func (s *Store) allRids() index.RidSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allRidsLocked()
}

// allRidsLocked is allRids for a caller that already holds s.mu (for reading
// or writing).
func (s *Store) allRidsLocked() index.RidSet {
	out := make(index.RidSet, len(s.records))
	for rid := range s.records {
		out[rid] = struct{}{}
	}
	return out
}
