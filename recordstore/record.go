// Package recordstore implements the three tightly coupled subsystems at
// the heart of the engine: the identity-preserving record manager (C), the
// live record view (G), and — because they share the record manager's
// indices and locking — the query executor (E) and transaction manager (F)
// as well. See predicate for the AST (D) and index for the ordered
// multi-index (B).
package recordstore

import (
	"sort"

	"github.com/gloudx/recordstore/valueorder"
)

// Field is an explicit (key, value) pair used to build a Record with a
// caller-chosen attribute order, since a plain Go map has none.
type Field struct {
	Key string
	Val any
}

// Record is an ordered mapping from attribute name to a normalized value
// (§3). Attribute order is insertion order: first creation order, then the
// order new keys are added by later writes.
type Record struct {
	keys []string
	vals map[string]valueorder.Value
}

func newEmptyRecord() *Record {
	return &Record{vals: make(map[string]valueorder.Value)}
}

// newRecordFromFields builds a Record preserving the exact order of fields.
func newRecordFromFields(fields []Field) *Record {
	r := newEmptyRecord()
	for _, f := range fields {
		r.set(f.Key, valueorder.FromGo(f.Val))
	}
	return r
}

// newRecordFromMap builds a Record from a plain Go map. Map iteration order
// is not defined by the language, so keys are ordered alphabetically for a
// deterministic, reproducible attribute order; callers who need to control
// order should build with Field pairs instead.
func newRecordFromMap(m map[string]any) *Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	r := newEmptyRecord()
	for _, k := range keys {
		r.set(k, valueorder.FromGo(m[k]))
	}
	return r
}

func (r *Record) set(key string, v valueorder.Value) {
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
}

func (r *Record) unset(key string) {
	if _, ok := r.vals[key]; !ok {
		return
	}
	delete(r.vals, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Get returns the top-level attribute value and whether it is present.
func (r *Record) Get(key string) (valueorder.Value, bool) {
	v, ok := r.vals[key]
	return v, ok
}

// Keys returns attribute names in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// clone returns a deep-enough copy: Value is immutable once built, so only
// the key/slice bookkeeping needs copying.
func (r *Record) clone() *Record {
	cp := &Record{
		keys: append([]string(nil), r.keys...),
		vals: make(map[string]valueorder.Value, len(r.vals)),
	}
	for k, v := range r.vals {
		cp.vals[k] = v
	}
	return cp
}

// ToMap renders the record's top-level attributes back to a plain Go map,
// the shape returned by View.Map, Transaction.Get, and query results when
// no projection is requested.
func (r *Record) ToMap() map[string]any {
	out := make(map[string]any, len(r.vals))
	for _, k := range r.keys {
		out[k] = valueorder.ToGo(r.vals[k])
	}
	return out
}
