package recordstore

import (
	"sort"

	"github.com/itchyny/gojq"

	"github.com/gloudx/recordstore/index"
	"github.com/gloudx/recordstore/predicate"
	"github.com/gloudx/recordstore/storeerr"
	"github.com/gloudx/recordstore/valueorder"
)

// execTarget is what a Query binds to: the store directly, or a
// transaction's overlay view of it (§4.4: "the query is callable ... when
// called on a transaction, the result must be a consistent snapshot of the
// transaction's current visible state").
type execTarget interface {
	candidates(p predicate.Predicate) index.RidSet
	allRids() index.RidSet
	lookupRecord(rid Rid) *Record
	lookupMany(rids []Rid) map[Rid]*Record
	mutateDelete(rid Rid) error
	mutateUpdate(rid Rid, patch map[string]any) error
}

// Query is the composable builder of §4.4/§6 (E): a predicate plus
// ordering, pagination, and projection, bound to a store or transaction.
type Query struct {
	target  execTarget
	pred    predicate.Predicate
	order   []predicate.OrderTerm
	limit   int
	offset  int
	hasLim  bool
	hasOff  bool
	project []predicate.Path
	raw     string
}

func newQuery(target execTarget, paths []string) *Query {
	pp := make([]predicate.Path, len(paths))
	for i, p := range paths {
		pp[i] = predicate.ParsePath(p)
	}
	return &Query{target: target, pred: predicate.True{}, project: pp}
}

// Where intersects additional predicates with the existing one (§6: "combined with And").
func (q *Query) Where(preds ...predicate.Predicate) *Query {
	if len(preds) == 0 {
		return q
	}
	combined := q.pred
	for _, p := range preds {
		combined = predicate.And{Left: combined, Right: p}
	}
	q.pred = combined
	return q
}

// OrderBy appends ordering terms.
func (q *Query) OrderBy(terms ...predicate.OrderTerm) *Query {
	q.order = append(q.order, terms...)
	return q
}

// Limit caps the number of results returned after ordering and offset.
func (q *Query) Limit(n int) *Query {
	q.limit, q.hasLim = n, true
	return q
}

// Offset skips the first n ordered results.
func (q *Query) Offset(n int) *Query {
	q.offset, q.hasOff = n, true
	return q
}

// Raw attaches an ad-hoc jq expression (github.com/itchyny/gojq) as an
// additional residual filter, an escape hatch alongside the canonical
// predicate AST for expressions the builder API can't reach — mirrors the
// teacher's own QueryJQ (datastore/jq.go).
func (q *Query) Raw(jqExpr string) *Query {
	q.raw = jqExpr
	return q
}

// ResultShape selects whether Run returns a rid->value map (default) or an
// ordered slice.
type ResultShape int

const (
	ShapeMap ResultShape = iota
	ShapeList
)

// Run executes the query and materializes results as configured by shape;
// other dtype-like options are silently ignored per §6.
func (q *Query) Run(shape ResultShape) (any, error) {
	rows, err := q.evaluate()
	if err != nil {
		return nil, err
	}
	if shape == ShapeList {
		out := make([]any, len(rows))
		for i, r := range rows {
			out[i] = r.value
		}
		return out, nil
	}
	out := make(map[Rid]any, len(rows))
	for _, r := range rows {
		out[r.rid] = r.value
	}
	return out, nil
}

// Map is sugar for Run(ShapeMap).
func (q *Query) Map() (map[Rid]any, error) {
	v, err := q.Run(ShapeMap)
	if err != nil {
		return nil, err
	}
	return v.(map[Rid]any), nil
}

// List is sugar for Run(ShapeList).
func (q *Query) List() ([]any, error) {
	v, err := q.Run(ShapeList)
	if err != nil {
		return nil, err
	}
	return v.([]any), nil
}

type row struct {
	rid    Rid
	record *Record
	value  any
}

func (q *Query) evaluate() ([]row, error) {
	if err := predicate.Validate(q.pred); err != nil {
		return nil, storeerr.ErrBadPredicate
	}
	if (q.hasLim && q.limit < 0) || (q.hasOff && q.offset < 0) {
		return nil, storeerr.ErrBadOrdering
	}

	normalized := predicate.Normalize(q.pred)
	candidates := q.target.candidates(normalized)

	var compiledJQ *gojq.Code
	if q.raw != "" {
		qy, err := gojq.Parse(q.raw)
		if err != nil {
			return nil, storeerr.ErrBadPredicate
		}
		compiledJQ, err = gojq.Compile(qy)
		if err != nil {
			return nil, storeerr.ErrBadPredicate
		}
	}

	ridList := candidates.Slice()
	records := q.target.lookupMany(ridList)

	var rows []row
	for _, rid := range ridList {
		rec, ok := records[rid]
		if !ok {
			continue
		}
		if !predicate.Eval(normalized, lookupFor(rec)) {
			continue
		}
		if compiledJQ != nil && !matchesJQ(compiledJQ, rec) {
			continue
		}
		rows = append(rows, row{rid: rid, record: rec})
	}

	if len(q.order) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			return lessByOrder(rows[i], rows[j], q.order)
		})
	} else {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].rid < rows[j].rid })
	}

	if q.hasOff {
		if q.offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[q.offset:]
		}
	}
	if q.hasLim {
		if q.limit < len(rows) {
			rows = rows[:q.limit]
		}
	}

	for i := range rows {
		if len(q.project) == 0 {
			rows[i].value = rows[i].record.ToMap()
		} else {
			rows[i].value = project(rows[i].record, q.project)
		}
	}
	return rows, nil
}

func matchesJQ(code *gojq.Code, rec *Record) bool {
	iter := code.Run(rec.ToMap())
	v, ok := iter.Next()
	if !ok {
		return false
	}
	if err, isErr := v.(error); isErr {
		_ = err
		return false
	}
	truthy, ok := v.(bool)
	if !ok {
		return v != nil
	}
	return truthy
}

func lessByOrder(a, b row, terms []predicate.OrderTerm) bool {
	for _, t := range terms {
		av, _ := resolvePath(a.record, t.PathV)
		bv, _ := resolvePath(b.record, t.PathV)
		c := valueorder.Compare(av, bv)
		if c == 0 {
			continue
		}
		if t.Dir == predicate.Desc {
			return c > 0
		}
		return c < 0
	}
	return a.rid < b.rid
}

// Delete removes every record matching the query through the bound target
// (the store directly, or a transaction's overlay).
func (q *Query) Delete() error {
	rows, err := q.evaluate()
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := q.target.mutateDelete(r.rid); err != nil && err != storeerr.ErrNotFound {
			return err
		}
	}
	return nil
}

// Update applies changes to every record matching the query.
func (q *Query) Update(changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}
	rows, err := q.evaluate()
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := q.target.mutateUpdate(r.rid, changes); err != nil {
			return err
		}
	}
	return nil
}

// planCandidates computes a safe superset of matching rids straight from
// the base indices (§4.4 steps 2-4): And intersects, Or unions, and any
// leaf outside the single-attribute, index-assisted shape contributes the
// full rid universe so the residual pass (predicate.Eval, always run in
// full over the merged record) can narrow it down.
func planCandidates(p predicate.Predicate, mi *index.MultiIndex, universe func() index.RidSet) index.RidSet {
	switch n := p.(type) {
	case predicate.True:
		return universe()
	case predicate.False:
		return index.RidSet{}
	case predicate.And:
		return index.Intersect(planCandidates(n.Left, mi, universe), planCandidates(n.Right, mi, universe))
	case predicate.Or:
		return index.Union(planCandidates(n.Left, mi, universe), planCandidates(n.Right, mi, universe))
	case predicate.Compare:
		if len(n.PathV) != 1 {
			return universe()
		}
		ix, ok := mi.Lookup(n.PathV[0])
		return compareCandidates(n, ix, ok, universe)
	case predicate.Member:
		if len(n.PathV) != 1 {
			return universe()
		}
		ix, ok := mi.Lookup(n.PathV[0])
		// A missing attribute compares as null, so a null in the set also
		// matches every rid that never set the attribute.
		hasNull := false
		for _, v := range n.Values {
			hasNull = hasNull || v.IsNull()
		}
		if !ok {
			if hasNull {
				return universe()
			}
			return index.RidSet{}
		}
		if hasNull {
			return index.Union(ix.Membership(n.Values), index.Difference(universe(), ix.All()))
		}
		return ix.Membership(n.Values)
	case predicate.NotMember:
		// §4.4 step 1: Not(Member) is residual-only.
		return universe()
	default:
		return universe()
	}
}

// compareCandidates computes the candidate set for a single-attribute
// Compare leaf. A missing attribute evaluates as null for comparison
// purposes, and null sits below every other kind (R3), so the attribute's
// own AVL tree — which only ever holds rids that actually set the
// attribute — is not by itself a safe superset for every op: Lt/Le/Ne
// against a non-null literal, and Eq/Le/Ge against a null literal, must
// also pull in every rid missing the attribute entirely, since those rids
// compare as null. Eq/Gt/Ge against a non-null literal, and Lt/Gt/Ne
// against a null literal, can never be satisfied by a missing attribute and
// so never need the missing set folded in.
func compareCandidates(n predicate.Compare, ix *index.Index, ok bool, universe func() index.RidSet) index.RidSet {
	missing := func() index.RidSet {
		if !ok {
			return universe()
		}
		return index.Difference(universe(), ix.All())
	}
	isNull := n.Literal.IsNull()

	if !ok {
		// No record has ever set the attribute: every rid compares as null.
		switch {
		case n.Op == predicate.Eq && isNull,
			n.Op == predicate.Ne && !isNull,
			n.Op == predicate.Lt && !isNull,
			n.Op == predicate.Le,
			n.Op == predicate.Ge && isNull:
			return universe()
		default:
			return index.RidSet{}
		}
	}

	switch n.Op {
	case predicate.Eq:
		if isNull {
			return index.Union(ix.Point(n.Literal), missing())
		}
		return ix.Point(n.Literal)
	case predicate.Ne:
		if isNull {
			return index.Difference(ix.All(), ix.Point(n.Literal))
		}
		return index.Union(index.Difference(ix.All(), ix.Point(n.Literal)), missing())
	case predicate.Lt:
		if isNull {
			return index.RidSet{}
		}
		return index.Union(ix.Range(nil, &n.Literal, false, false), missing())
	case predicate.Le:
		if isNull {
			return index.Union(ix.Point(n.Literal), missing())
		}
		return index.Union(ix.Range(nil, &n.Literal, false, true), missing())
	case predicate.Gt:
		if isNull {
			return index.Difference(ix.All(), ix.Point(n.Literal))
		}
		return ix.Range(&n.Literal, nil, false, false)
	case predicate.Ge:
		if isNull {
			return universe()
		}
		return ix.Range(&n.Literal, nil, true, false)
	}
	return universe()
}
