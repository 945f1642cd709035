// Package index implements the ordered multi-index: a per-attribute sorted
// map from a normalized attribute value to the set of record ids holding
// that value, backed by an AVL tree keyed on valueorder's total order and
// carrying a bucket of rids per node.
package index

import (
	"sort"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/samber/lo"

	"github.com/gloudx/recordstore/valueorder"
)

// Rid is the opaque, stable identifier of a record within a store.
type Rid int64

// RidSet is an unordered set of record ids, the unit every index lookup
// returns.
type RidSet map[Rid]struct{}

func NewRidSet(ids ...Rid) RidSet {
	s := make(RidSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s RidSet) Add(id Rid)      { s[id] = struct{}{} }
func (s RidSet) Remove(id Rid)   { delete(s, id) }
func (s RidSet) Has(id Rid) bool { _, ok := s[id]; return ok }
func (s RidSet) Len() int        { return len(s) }

func (s RidSet) Slice() []Rid {
	out := make([]Rid, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Union merges any number of rid-sets using samber/lo's dedup-preserving
// slice combinator, the set algebra the predicate planner's Or-combination
// relies on.
func Union(sets ...RidSet) RidSet {
	slices := make([][]Rid, len(sets))
	for i, s := range sets {
		slices[i] = s.Slice()
	}
	merged := lo.Union(slices...)
	return NewRidSet(merged...)
}

// Intersect returns the rids present in every set, built on lancet's
// slice.Intersection. An empty sets list intersects to empty, not "all".
func Intersect(sets ...RidSet) RidSet {
	if len(sets) == 0 {
		return RidSet{}
	}
	slices := make([][]Rid, len(sets))
	for i, s := range sets {
		slices[i] = s.Slice()
	}
	return NewRidSet(slice.Intersection(slices...)...)
}

// Difference returns the rids in a that are not in b.
func Difference(a, b RidSet) RidSet {
	out := make(RidSet, len(a))
	for id := range a {
		if !b.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Direction selects the order iterOrdered walks an index in.
type Direction int

const (
	Asc Direction = iota
	Desc
)

type avlNode struct {
	key         valueorder.Value
	ids         RidSet
	left, right *avlNode
	height      int
}

func height(n *avlNode) int {
	if n == nil {
		return 0
	}
	return n.height
}

func balanceFactor(n *avlNode) int {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

func fixHeight(n *avlNode) {
	h := height(n.left)
	if rh := height(n.right); rh > h {
		h = rh
	}
	n.height = h + 1
}

func rotateRight(n *avlNode) *avlNode {
	l := n.left
	n.left = l.right
	l.right = n
	fixHeight(n)
	fixHeight(l)
	return l
}

func rotateLeft(n *avlNode) *avlNode {
	r := n.right
	n.right = r.left
	r.left = n
	fixHeight(n)
	fixHeight(r)
	return r
}

func rebalance(n *avlNode) *avlNode {
	fixHeight(n)
	switch bf := balanceFactor(n); {
	case bf > 1:
		if balanceFactor(n.left) < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	case bf < -1:
		if balanceFactor(n.right) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	default:
		return n
	}
}

// Index is a single attribute's ordered multi-index: value -> rid set,
// kept balanced by key under valueorder.Compare.
type Index struct {
	root *avlNode
	size int
}

func New() *Index { return &Index{} }

// Len reports the number of distinct values currently indexed.
func (ix *Index) Len() int { return ix.size }

// Insert adds rid to the bucket for v, creating the bucket if this is the
// first rid to take that value.
func (ix *Index) Insert(v valueorder.Value, rid Rid) {
	ix.root = insert(ix.root, v, rid, &ix.size)
}

func insert(n *avlNode, v valueorder.Value, rid Rid, size *int) *avlNode {
	if n == nil {
		*size++
		return &avlNode{key: v, ids: NewRidSet(rid), height: 1}
	}
	switch c := valueorder.Compare(v, n.key); {
	case c < 0:
		n.left = insert(n.left, v, rid, size)
	case c > 0:
		n.right = insert(n.right, v, rid, size)
	default:
		n.ids.Add(rid)
		return n
	}
	return rebalance(n)
}

// Remove drops rid from the bucket for v, pruning the node entirely once
// its bucket becomes empty (invariant R2).
func (ix *Index) Remove(v valueorder.Value, rid Rid) {
	ix.root = remove(ix.root, v, rid, &ix.size)
}

func remove(n *avlNode, v valueorder.Value, rid Rid, size *int) *avlNode {
	if n == nil {
		return nil
	}
	switch c := valueorder.Compare(v, n.key); {
	case c < 0:
		n.left = remove(n.left, v, rid, size)
	case c > 0:
		n.right = remove(n.right, v, rid, size)
	default:
		n.ids.Remove(rid)
		if n.ids.Len() > 0 {
			return n
		}
		*size--
		switch {
		case n.left == nil:
			return n.right
		case n.right == nil:
			return n.left
		default:
			succ := leftmost(n.right)
			n.key = succ.key
			n.ids = succ.ids
			n.right = removeNode(n.right, succ.key)
		}
	}
	return rebalance(n)
}

// removeNode deletes the whole node keyed by k (used only to splice out the
// in-order successor during a two-child delete above, so it ignores bucket
// contents entirely).
func removeNode(n *avlNode, k valueorder.Value) *avlNode {
	if n == nil {
		return nil
	}
	switch c := valueorder.Compare(k, n.key); {
	case c < 0:
		n.left = removeNode(n.left, k)
	case c > 0:
		n.right = removeNode(n.right, k)
	default:
		switch {
		case n.left == nil:
			return n.right
		case n.right == nil:
			return n.left
		default:
			succ := leftmost(n.right)
			n.key = succ.key
			n.ids = succ.ids
			n.right = removeNode(n.right, succ.key)
		}
	}
	return rebalance(n)
}

func leftmost(n *avlNode) *avlNode {
	for n.left != nil {
		n = n.left
	}
	return n
}

// Point returns the rid set at exactly v, or an empty set if v is unindexed.
func (ix *Index) Point(v valueorder.Value) RidSet {
	n := ix.root
	for n != nil {
		switch c := valueorder.Compare(v, n.key); {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.ids
		}
	}
	return RidSet{}
}

// Range returns the union of rid sets over [lo, hi] (or half-open per
// inclLo/inclHi). A nil lo or hi bound means unbounded on that side.
func (ix *Index) Range(lo, hi *valueorder.Value, inclLo, inclHi bool) RidSet {
	out := RidSet{}
	var walk func(n *avlNode)
	walk = func(n *avlNode) {
		if n == nil {
			return
		}
		belowLo := lo != nil && belowBound(n.key, *lo, inclLo)
		aboveHi := hi != nil && aboveBound(n.key, *hi, inclHi)
		if lo == nil || !belowLo {
			walk(n.left)
		}
		if !belowLo && !aboveHi {
			for id := range n.ids {
				out.Add(id)
			}
		}
		if hi == nil || !aboveHi {
			walk(n.right)
		}
	}
	walk(ix.root)
	return out
}

func belowBound(v, bound valueorder.Value, incl bool) bool {
	c := valueorder.Compare(v, bound)
	if incl {
		return c < 0
	}
	return c <= 0
}

func aboveBound(v, bound valueorder.Value, incl bool) bool {
	c := valueorder.Compare(v, bound)
	if incl {
		return c > 0
	}
	return c >= 0
}

// Membership returns the union of rid sets over each element of vs.
func (ix *Index) Membership(vs []valueorder.Value) RidSet {
	out := RidSet{}
	for _, v := range vs {
		for id := range ix.Point(v) {
			out.Add(id)
		}
	}
	return out
}

// All returns every rid currently indexed under any value.
func (ix *Index) All() RidSet {
	out := RidSet{}
	var walk func(n *avlNode)
	walk = func(n *avlNode) {
		if n == nil {
			return
		}
		walk(n.left)
		for id := range n.ids {
			out.Add(id)
		}
		walk(n.right)
	}
	walk(ix.root)
	return out
}

// Pair is a (value, rid) step yielded by IterOrdered.
type Pair struct {
	Value valueorder.Value
	Rid   Rid
}

// IterOrdered returns every (value, rid) pair in sort order (or its
// reverse), rid ascending within a tied value for a deterministic walk.
func (ix *Index) IterOrdered(dir Direction) []Pair {
	var out []Pair
	var walkAsc func(n *avlNode)
	walkAsc = func(n *avlNode) {
		if n == nil {
			return
		}
		walkAsc(n.left)
		ids := n.ids.Slice()
		sortRids(ids)
		for _, id := range ids {
			out = append(out, Pair{Value: n.key, Rid: id})
		}
		walkAsc(n.right)
	}
	var walkDesc func(n *avlNode)
	walkDesc = func(n *avlNode) {
		if n == nil {
			return
		}
		walkDesc(n.right)
		ids := n.ids.Slice()
		sortRids(ids)
		for _, id := range ids {
			out = append(out, Pair{Value: n.key, Rid: id})
		}
		walkDesc(n.left)
	}
	if dir == Asc {
		walkAsc(ix.root)
	} else {
		walkDesc(ix.root)
	}
	return out
}

func sortRids(ids []Rid) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// MultiIndex owns the collection of per-attribute indices a record manager
// maintains (invariant R2): one Index per attribute name that has appeared
// on any live record.
type MultiIndex struct {
	byAttr map[string]*Index
}

func NewMultiIndex() *MultiIndex {
	return &MultiIndex{byAttr: make(map[string]*Index)}
}

// Attr returns the Index for attr, creating an empty one on first use.
func (m *MultiIndex) Attr(attr string) *Index {
	ix, ok := m.byAttr[attr]
	if !ok {
		ix = New()
		m.byAttr[attr] = ix
	}
	return ix
}

// Lookup returns the Index for attr without creating one, used by the
// planner to tell "no such attribute is indexed" apart from "indexed but
// empty".
func (m *MultiIndex) Lookup(attr string) (*Index, bool) {
	ix, ok := m.byAttr[attr]
	return ix, ok
}

// Attrs lists every attribute name currently indexed.
func (m *MultiIndex) Attrs() []string {
	out := make([]string, 0, len(m.byAttr))
	for a := range m.byAttr {
		out = append(out, a)
	}
	return out
}
