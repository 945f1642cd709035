package recordstore

import (
	"github.com/gloudx/recordstore/storeerr"
	"github.com/gloudx/recordstore/valueorder"
)

// View is a live record handle (G): reads return current state, writes are
// intercepted and funneled into the owning Store, and the handle is shared
// — two Get calls for the same rid return the same *View — per the
// identity invariant R1. It holds no data of its own beyond its rid and a
// validity flag; every read or write goes straight through to the store.
type View struct {
	rid   Rid
	store *Store
	valid bool
}

func (v *View) Rid() Rid { return v.rid }

// Value reads attribute key, failing with ErrKeyMissing if absent and
// ErrNotFound if the record has since been deleted.
func (v *View) Value(key string) (any, error) {
	rec, err := v.liveRecord()
	if err != nil {
		return nil, err
	}
	val, ok := rec.Get(key)
	if !ok {
		return nil, storeerr.ErrKeyMissing
	}
	return valueorder.ToGo(val), nil
}

// Set writes key=val and reindexes it (view[k] = v).
func (v *View) Set(key string, val any) error {
	if !v.valid {
		return storeerr.ErrNotFound
	}
	return v.store.Update(v.rid, map[string]any{key: val})
}

// DeleteKey removes key from the record (del view[k]).
func (v *View) DeleteKey(key string) error {
	if !v.valid {
		return storeerr.ErrNotFound
	}
	return v.store.DeleteAttrs(v.rid, []string{key})
}

// Update writes every entry of m and reindexes exactly those keys
// (view.update(m)).
func (v *View) Update(m map[string]any) error {
	if !v.valid {
		return storeerr.ErrNotFound
	}
	if len(m) == 0 {
		return nil
	}
	return v.store.Update(v.rid, m)
}

// SetDefault returns the current value of key if present; otherwise it
// writes def and returns it in its stored form, as Value would read it back
// (view.setdefault(k, d)).
func (v *View) SetDefault(key string, def any) (any, error) {
	rec, err := v.liveRecord()
	if err != nil {
		return nil, err
	}
	if cur, ok := rec.Get(key); ok {
		return valueorder.ToGo(cur), nil
	}
	if err := v.store.Update(v.rid, map[string]any{key: def}); err != nil {
		return nil, err
	}
	return valueorder.ToGo(valueorder.FromGo(def)), nil
}

// Delete removes the whole record (view.delete()) and invalidates v.
func (v *View) Delete() error {
	if !v.valid {
		return storeerr.ErrNotFound
	}
	return v.store.Delete(v.rid)
}

// Keys lists current attribute names in insertion order.
func (v *View) Keys() ([]string, error) {
	rec, err := v.liveRecord()
	if err != nil {
		return nil, err
	}
	return rec.Keys(), nil
}

// Map renders the whole record as a plain Go map.
func (v *View) Map() (map[string]any, error) {
	rec, err := v.liveRecord()
	if err != nil {
		return nil, err
	}
	return rec.ToMap(), nil
}

func (v *View) liveRecord() (*Record, error) {
	if !v.valid {
		return nil, storeerr.ErrNotFound
	}
	rec := v.store.snapshotRecord(v.rid)
	if rec == nil {
		v.valid = false
		return nil, storeerr.ErrNotFound
	}
	return rec, nil
}
