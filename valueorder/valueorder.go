// Package valueorder implements the total order and canonical hash over the
// heterogeneous value domain a record attribute can hold: null, bool,
// number, string, ordered sequence, set, and nested mapping.
package valueorder

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"lukechampine.com/blake3"
)

// Kind is the top-level classification used to order values of different
// shapes: null < bool < number < string < seq < set < map.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSeq
	KindSet
	KindMap
)

// Entry is a single key/value pair of a Map-kind Value, kept sorted by Key.
type Entry struct {
	Key string
	Val Value
}

// Value is a normalized, comparable record attribute value. Zero Value is
// KindNull. Construct with the New* helpers or FromGo for arbitrary
// interface{} trees such as those decoded from JSON.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	seq  []Value
	set  []Value
	m    []Entry
}

func Null() Value           { return Value{kind: KindNull} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Number(n float64) Value {
	if math.IsNaN(n) {
		// Canonicalize every NaN bit pattern to one representative so that
		// equal() and the ordered index see a single sentinel value.
		n = math.NaN()
	}
	return Value{kind: KindNumber, n: n}
}
func String(s string) Value { return Value{kind: KindString, s: s} }

// Seq builds a sequence value; element order is significant and preserved.
func Seq(vals ...Value) Value {
	cp := make([]Value, len(vals))
	copy(cp, vals)
	return Value{kind: KindSeq, seq: cp}
}

// Set builds a set value; duplicates collapse and elements are normalized
// into sorted order so that two sets with the same members compare equal
// regardless of insertion order.
func Set(vals ...Value) Value {
	sorted := make([]Value, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return Compare(sorted[i], sorted[j]) < 0 })
	out := sorted[:0:0]
	for i, v := range sorted {
		if i > 0 && Equal(v, sorted[i-1]) {
			continue
		}
		out = append(out, v)
	}
	return Value{kind: KindSet, set: out}
}

// Map builds a mapping value, sorting entries by key so that structurally
// equal mappings compare equal regardless of the order keys were supplied.
func Map(entries ...Entry) Value {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	return Value{kind: KindMap, m: sorted}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)      { return v.b, v.kind == KindBool }
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }
func (v Value) AsString() (string, bool)  { return v.s, v.kind == KindString }
func (v Value) AsSeq() ([]Value, bool)    { return v.seq, v.kind == KindSeq }
func (v Value) AsSet() ([]Value, bool)    { return v.set, v.kind == KindSet }
func (v Value) AsMap() ([]Entry, bool)    { return v.m, v.kind == KindMap }

// FromGo normalizes an arbitrary Go value (as produced by decoding JSON,
// building a record literal, etc.) into the canonical Value domain. Maps
// and slices are walked recursively; unrecognized concrete types fall back
// to their fmt string form wrapped as KindString, which keeps the order
// total rather than panicking on unexpected input.
func FromGo(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = FromGo(e)
		}
		return Seq(out...)
	case map[string]any:
		entries := make([]Entry, 0, len(t))
		for k, val := range t {
			entries = append(entries, Entry{Key: k, Val: FromGo(val)})
		}
		return Map(entries...)
	default:
		return stringFallback(x)
	}
}

// FromGoAll normalizes a slice of arbitrary Go values, e.g. the literal set
// passed to a Member predicate's one_of/in builder.
func FromGoAll(xs []any) []Value {
	out := make([]Value, len(xs))
	for i, x := range xs {
		out[i] = FromGo(x)
	}
	return out
}

// ToGo converts a Value back to a plain interface{} tree, the inverse of
// FromGo, used when handing a record's attributes back to the caller.
func ToGo(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindSeq:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = ToGo(e)
		}
		return out
	case KindSet:
		out := make([]any, len(v.set))
		for i, e := range v.set {
			out[i] = ToGo(e)
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for _, e := range v.m {
			out[e.Key] = ToGo(e.Val)
		}
		return out
	}
	return nil
}

// Compare implements R3's total order: −1 if a < b, 0 if equal, +1 if a > b.
// Mixed-kind comparison never panics; it always falls back to ordering by
// Kind.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		return compareBool(a.b, b.b)
	case KindNumber:
		return compareFloat(a.n, b.n)
	case KindString:
		return compareString(a.s, b.s)
	case KindSeq:
		return compareSeq(a.seq, b.seq)
	case KindSet:
		return compareSeq(a.set, b.set)
	case KindMap:
		return compareMap(a.m, b.m)
	}
	return 0
}

// Equal reports structural equality under the same normalization Compare
// uses; it is exactly Compare(a, b) == 0, exposed separately because most
// call sites only need a boolean.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func compareFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareSeq(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareInt(len(a), len(b))
}

func compareMap(a, b []Entry) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareString(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := Compare(a[i].Val, b[i].Val); c != 0 {
			return c
		}
	}
	return compareInt(len(a), len(b))
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Hash computes a canonical hash of v using a sorted-traversal encoding fed
// through blake3, so that structurally equal values (including sets and
// maps normalized in a different insertion order) hash identically. The
// first 8 bytes of the 256-bit digest are read as a single int64 for use as a cheap bucket
// key; callers that need collision-free identity should use Compare/Equal,
// not Hash, for correctness.
func Hash(v Value) int64 {
	h := blake3.New(32, nil)
	writeCanonical(h, v)
	sum := h.Sum(nil)
	return int64(binary.LittleEndian.Uint64(sum[:8]))
}

func writeCanonical(h *blake3.Hasher, v Value) {
	h.Write([]byte{byte(v.kind)})
	switch v.kind {
	case KindNull:
	case KindBool:
		if v.b {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case KindNumber:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.n))
		h.Write(buf[:])
	case KindString:
		h.Write([]byte(v.s))
	case KindSeq:
		for _, e := range v.seq {
			writeCanonical(h, e)
		}
	case KindSet:
		for _, e := range v.set {
			writeCanonical(h, e)
		}
	case KindMap:
		for _, e := range v.m {
			h.Write([]byte(e.Key))
			h.Write([]byte{0})
			writeCanonical(h, e.Val)
		}
	}
}

func stringFallback(x any) Value {
	return String(fmt.Sprintf("%v", x))
}
