// Package predicate defines the tagged-sum predicate AST of §3, the
// negation-normal-form planner of §4.4, and the pure-function evaluator
// used both for direct store queries and for a transaction's merged-state
// residual pass (§4.6).
package predicate

import (
	"strings"

	"github.com/gloudx/recordstore/valueorder"
)

// Op is a comparison operator for a Compare leaf.
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Path is a non-empty chain of attribute names applied to the record root.
// Only a length-1 path is index-assisted; longer paths always fall back to
// residual evaluation against nested maps.
type Path []string

// ParsePath splits a dotted attribute path ("dog.age") into a Path. A bare
// name with no dot yields a length-1 Path.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

func (p Path) String() string { return strings.Join(p, ".") }

// Predicate is the sealed interface implemented by every AST node.
type Predicate interface {
	predicateNode()
}

type Compare struct {
	PathV   Path
	Op      Op
	Literal valueorder.Value
}

type Member struct {
	PathV  Path
	Values []valueorder.Value
}

// NotMember is the normal form of Not(Member(...)): "attribute value is not
// in this finite set". It only ever arises from normalization; the builder
// API never returns it directly, but callers may construct it.
type NotMember struct {
	PathV  Path
	Values []valueorder.Value
}

type And struct{ Left, Right Predicate }
type Or struct{ Left, Right Predicate }
type Not struct{ P Predicate }
type True struct{}
type False struct{}

func (Compare) predicateNode()   {}
func (Member) predicateNode()    {}
func (NotMember) predicateNode() {}
func (And) predicateNode()       {}
func (Or) predicateNode()        {}
func (Not) predicateNode()       {}
func (True) predicateNode()      {}
func (False) predicateNode()     {}

// --- builder API (§9: "expose a small predicate-builder API") ---

func Eql(path string, lit any) Predicate {
	return Compare{PathV: ParsePath(path), Op: Eq, Literal: valueorder.FromGo(lit)}
}
func NotEql(path string, lit any) Predicate {
	return Compare{PathV: ParsePath(path), Op: Ne, Literal: valueorder.FromGo(lit)}
}
func LessThan(path string, lit any) Predicate {
	return Compare{PathV: ParsePath(path), Op: Lt, Literal: valueorder.FromGo(lit)}
}
func LessOrEqual(path string, lit any) Predicate {
	return Compare{PathV: ParsePath(path), Op: Le, Literal: valueorder.FromGo(lit)}
}
func GreaterThan(path string, lit any) Predicate {
	return Compare{PathV: ParsePath(path), Op: Gt, Literal: valueorder.FromGo(lit)}
}
func GreaterOrEqual(path string, lit any) Predicate {
	return Compare{PathV: ParsePath(path), Op: Ge, Literal: valueorder.FromGo(lit)}
}

// OneOf builds a Member leaf: attribute value is one of vals.
func OneOf(path string, vals ...any) Predicate {
	return Member{PathV: ParsePath(path), Values: fromGoAll(vals)}
}

func AndP(ps ...Predicate) Predicate {
	if len(ps) == 0 {
		return True{}
	}
	acc := ps[0]
	for _, p := range ps[1:] {
		acc = And{Left: acc, Right: p}
	}
	return acc
}

func OrP(ps ...Predicate) Predicate {
	if len(ps) == 0 {
		return False{}
	}
	acc := ps[0]
	for _, p := range ps[1:] {
		acc = Or{Left: acc, Right: p}
	}
	return acc
}

func NotP(p Predicate) Predicate { return Not{P: p} }

func fromGoAll(xs []any) []valueorder.Value {
	out := make([]valueorder.Value, len(xs))
	for i, x := range xs {
		out[i] = valueorder.FromGo(x)
	}
	return out
}

// invert returns the operator that makes Compare(path, op, lit) false
// exactly where the original is true, i.e. Not(Compare(path, op, lit)).
func invert(op Op) Op {
	switch op {
	case Eq:
		return Ne
	case Ne:
		return Eq
	case Lt:
		return Ge
	case Le:
		return Gt
	case Gt:
		return Le
	case Ge:
		return Lt
	}
	return op
}

// Normalize pushes Not to the leaves (negation-normal form), per §4.4 step 1:
// Not(Compare) inverts the operator, Not(Member) becomes NotMember, De
// Morgan distributes Not over And/Or, and double negation cancels.
func Normalize(p Predicate) Predicate {
	switch n := p.(type) {
	case And:
		return And{Left: Normalize(n.Left), Right: Normalize(n.Right)}
	case Or:
		return Or{Left: Normalize(n.Left), Right: Normalize(n.Right)}
	case Not:
		return normalizeNot(n.P)
	default:
		return p
	}
}

func normalizeNot(p Predicate) Predicate {
	switch n := p.(type) {
	case True:
		return False{}
	case False:
		return True{}
	case Not:
		return Normalize(n.P)
	case And:
		return Or{Left: normalizeNot(n.Left), Right: normalizeNot(n.Right)}
	case Or:
		return And{Left: normalizeNot(n.Left), Right: normalizeNot(n.Right)}
	case Compare:
		return Compare{PathV: n.PathV, Op: invert(n.Op), Literal: n.Literal}
	case Member:
		return NotMember{PathV: n.PathV, Values: n.Values}
	case NotMember:
		return Member{PathV: n.PathV, Values: n.Values}
	default:
		return Not{P: p}
	}
}
