package recordstore

import (
	"sync"

	"github.com/gloudx/recordstore/index"
	"github.com/gloudx/recordstore/predicate"
	"github.com/gloudx/recordstore/storeerr"
	"github.com/gloudx/recordstore/valueorder"
)

// overlayEntry is one rid's pending change: either a tombstone, a brand
// new record (isCreate, not yet present in the base store), or a patch of
// set/deleted keys layered on top of whatever the base store currently
// holds.
type overlayEntry struct {
	tombstone bool
	isCreate  bool
	createRec *Record
	patch     map[string]any
	deleted   map[string]struct{}
}

// Transaction is the scoped write-buffering session of §4.6 (F): reads
// merge the overlay over the base store, writes land only in the overlay,
// and Commit applies everything atomically under the store's write lock.
type Transaction struct {
	store *Store

	mu      sync.Mutex
	overlay map[Rid]*overlayEntry
	closed  bool
}

func (s *Store) Transaction() *Transaction {
	return &Transaction{store: s, overlay: make(map[Rid]*overlayEntry)}
}

func (tx *Transaction) checkOpen() error {
	if tx.closed {
		return storeerr.ErrTransactionClosed
	}
	return nil
}

// Create stages a new record in the overlay; it becomes visible to reads
// and queries through this transaction immediately, and to the rest of the
// store only once Commit applies it.
func (tx *Transaction) Create(data map[string]any) (Rid, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkOpen(); err != nil {
		return 0, err
	}
	rec := newRecordFromMap(data)
	rid, hasID := ridFromRecord(rec)
	if hasID {
		if tx.mergedRecordLocked(rid) != nil {
			return 0, storeerr.ErrDuplicate
		}
	} else {
		rid = tx.store.reserveRid()
	}
	tx.overlay[rid] = &overlayEntry{isCreate: true, createRec: rec}
	return rid, nil
}

// Get returns the merged record for rid as a plain map, or ErrNotFound.
func (tx *Transaction) Get(rid Rid) (map[string]any, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkOpen(); err != nil {
		return nil, err
	}
	rec := tx.mergedRecordLocked(rid)
	if rec == nil {
		return nil, storeerr.ErrNotFound
	}
	return rec.ToMap(), nil
}

// Update stages a patch over rid, visible to this transaction immediately.
func (tx *Transaction) Update(rid Rid, patch map[string]any) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkOpen(); err != nil {
		return err
	}
	return tx.mutateUpdateLocked(rid, patch)
}

// DeleteAttrs stages per-key removal over rid.
func (tx *Transaction) DeleteAttrs(rid Rid, keys []string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkOpen(); err != nil {
		return err
	}
	if tx.mergedRecordLocked(rid) == nil {
		return storeerr.ErrNotFound
	}
	entry := tx.entryLocked(rid)
	for _, k := range keys {
		delete(entry.patch, k)
		entry.deleted[k] = struct{}{}
	}
	return nil
}

// Delete stages rid's removal.
func (tx *Transaction) Delete(rid Rid) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkOpen(); err != nil {
		return err
	}
	return tx.mutateDeleteLocked(rid)
}

func (tx *Transaction) mutateDeleteLocked(rid Rid) error {
	if tx.mergedRecordLocked(rid) == nil {
		return storeerr.ErrNotFound
	}
	if e, ok := tx.overlay[rid]; ok && e.isCreate {
		// created and deleted within the same transaction: net no-op, drop
		// the overlay entry entirely rather than staging a tombstone for a
		// rid the base store has never heard of.
		delete(tx.overlay, rid)
		return nil
	}
	tx.overlay[rid] = &overlayEntry{tombstone: true}
	return nil
}

func (tx *Transaction) mutateUpdateLocked(rid Rid, patch map[string]any) error {
	if tx.mergedRecordLocked(rid) == nil {
		return storeerr.ErrNotFound
	}
	entry := tx.entryLocked(rid)
	for k, v := range patch {
		delete(entry.deleted, k)
		entry.patch[k] = v
	}
	return nil
}

// entryLocked returns rid's overlay entry, creating a non-tombstone,
// non-create patch entry if none exists yet.
func (tx *Transaction) entryLocked(rid Rid) *overlayEntry {
	e, ok := tx.overlay[rid]
	if !ok {
		e = &overlayEntry{patch: make(map[string]any), deleted: make(map[string]struct{})}
		tx.overlay[rid] = e
		return e
	}
	if e.patch == nil {
		e.patch = make(map[string]any)
	}
	if e.deleted == nil {
		e.deleted = make(map[string]struct{})
	}
	return e
}

// mergedRecordLocked resolves rid's current transaction-visible state: nil
// if deleted (or never existed), overlay-over-base otherwise.
func (tx *Transaction) mergedRecordLocked(rid Rid) *Record {
	e, ok := tx.overlay[rid]
	if !ok {
		return tx.store.snapshotRecord(rid)
	}
	if e.tombstone {
		return nil
	}
	var base *Record
	if e.isCreate {
		base = e.createRec.clone()
	} else {
		base = tx.store.snapshotRecord(rid)
		if base == nil {
			return nil
		}
	}
	for k := range e.deleted {
		base.unset(k)
	}
	for k, v := range e.patch {
		base.set(k, valueorder.FromGo(v))
	}
	return base
}

// --- execTarget implementation, used by Select ---

var _ execTarget = (*Transaction)(nil)

func (tx *Transaction) candidates(p predicate.Predicate) index.RidSet {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.store.mu.RLock()
	base := planCandidates(p, tx.store.mi, tx.store.allRidsLocked)
	tx.store.mu.RUnlock()

	// Created and patched rids are all added: the base indices know nothing
	// of their overlay values, and the residual pass filters them.
	for rid, e := range tx.overlay {
		if e.tombstone {
			base.Remove(rid)
			continue
		}
		base.Add(rid)
	}
	return base
}

func (tx *Transaction) allRids() index.RidSet {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	base := tx.store.allRids()
	for rid, e := range tx.overlay {
		if e.tombstone {
			base.Remove(rid)
		} else {
			base.Add(rid)
		}
	}
	return base
}

func (tx *Transaction) lookupRecord(rid Rid) *Record {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.mergedRecordLocked(rid)
}

// lookupMany merges overlay entries onto one base-store batch snapshot, so
// a query run against a transaction gets the same cross-rid consistency the
// base store's own queries get, rather than one base read per candidate.
func (tx *Transaction) lookupMany(rids []Rid) map[Rid]*Record {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	baseRids := make([]Rid, 0, len(rids))
	for _, rid := range rids {
		if _, overlaid := tx.overlay[rid]; !overlaid {
			baseRids = append(baseRids, rid)
		}
	}
	base := tx.store.snapshotRecords(baseRids)

	out := make(map[Rid]*Record, len(rids))
	for _, rid := range rids {
		e, overlaid := tx.overlay[rid]
		if !overlaid {
			if rec, ok := base[rid]; ok {
				out[rid] = rec
			}
			continue
		}
		if e.tombstone {
			continue
		}
		var rec *Record
		if e.isCreate {
			rec = e.createRec.clone()
		} else if b, ok := base[rid]; ok {
			rec = b
		} else {
			continue
		}
		for k := range e.deleted {
			rec.unset(k)
		}
		for k, v := range e.patch {
			rec.set(k, valueorder.FromGo(v))
		}
		out[rid] = rec
	}
	return out
}

func (tx *Transaction) mutateDelete(rid Rid) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.mutateDeleteLocked(rid)
}

func (tx *Transaction) mutateUpdate(rid Rid, patch map[string]any) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.mutateUpdateLocked(rid, patch)
}

// Select returns a new Query whose reads and mutations are scoped to this
// transaction's merged view.
func (tx *Transaction) Select(fieldPaths ...string) *Query {
	return newQuery(tx, fieldPaths)
}

// Commit acquires the store's write lock, applies every overlay entry
// (create/update/delete, reindexing as it goes), and clears the overlay.
// Per §5, this makes the whole batch of changes visible atomically: no
// reader can observe a partial mixture of pre- and post-commit state,
// because the store's write lock excludes readers for the duration.
func (tx *Transaction) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkOpen(); err != nil {
		return err
	}
	tx.closed = true

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for rid, e := range tx.overlay {
		switch {
		case e.tombstone:
			tx.applyDeleteLocked(rid)
		case e.isCreate:
			tx.applyCreateLocked(rid, e)
		default:
			tx.applyPatchEntryLocked(rid, e)
		}
	}
	tx.overlay = nil
	return nil
}

func (tx *Transaction) applyDeleteLocked(rid Rid) {
	rec, ok := tx.store.records[rid]
	if !ok {
		return
	}
	for _, key := range rec.Keys() {
		v, _ := rec.Get(key)
		tx.store.mi.Attr(key).Remove(v, rid)
	}
	delete(tx.store.records, rid)
	tx.store.invalidateView(rid)
}

func (tx *Transaction) applyCreateLocked(rid Rid, e *overlayEntry) {
	rec := e.createRec.clone()
	for k := range e.deleted {
		rec.unset(k)
	}
	for k, v := range e.patch {
		rec.set(k, valueorder.FromGo(v))
	}
	tx.store.records[rid] = rec
	for _, key := range rec.Keys() {
		v, _ := rec.Get(key)
		tx.store.mi.Attr(key).Insert(v, rid)
	}
}

func (tx *Transaction) applyPatchEntryLocked(rid Rid, e *overlayEntry) {
	rec, ok := tx.store.records[rid]
	if !ok {
		return
	}
	keys := make([]string, 0, len(e.patch)+len(e.deleted))
	for k := range e.patch {
		keys = append(keys, k)
	}
	for k := range e.deleted {
		keys = append(keys, k)
	}
	tx.store.applyPatchLocked(rid, rec, keys, func(k string) (valueorder.Value, bool) {
		if _, del := e.deleted[k]; del {
			return valueorder.Value{}, false
		}
		v, present := e.patch[k]
		return valueorder.FromGo(v), present
	})
}

// Rollback discards the overlay; no base state was ever mutated, so this
// never touches the store's lock.
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkOpen(); err != nil {
		return err
	}
	tx.closed = true
	tx.overlay = nil
	return nil
}

// Do runs fn with a fresh transaction, committing on a nil return and
// rolling back (then re-surfacing the error unchanged) otherwise — the
// scoped form of §4.6's "entry returns the handle, exit commits or rolls
// back".
func (s *Store) Do(fn func(tx *Transaction) error) error {
	tx := s.Transaction()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
