package recordstore

import (
	"github.com/gloudx/recordstore/predicate"
	"github.com/gloudx/recordstore/valueorder"
)

// Symbol is the thin builder sugar §9 calls out as an external collaborator
// in the Python original (operator-overloaded attribute access). Go has no
// operator overloading, so chained method calls stand in for
// `s.foo.bar == 1`: Row("foo").Attr("bar").Eq(1). The predicate AST it
// produces (predicate.Predicate) is the canonical representation either
// way.
type Symbol struct {
	path predicate.Path
}

// Row returns a process-stable symbol rooted at attr (or a dotted path,
// e.g. "dog.age"), the Go analogue of the store's `row` property.
func Row(attr string) *Symbol {
	return &Symbol{path: predicate.ParsePath(attr)}
}

// Attr descends one more attribute level.
func (s *Symbol) Attr(name string) *Symbol {
	next := append(append(predicate.Path{}, s.path...), name)
	return &Symbol{path: next}
}

func (s *Symbol) Path() predicate.Path { return s.path }

func (s *Symbol) Eq(v any) predicate.Predicate {
	return predicate.Compare{PathV: s.path, Op: predicate.Eq, Literal: valueorder.FromGo(v)}
}
func (s *Symbol) Ne(v any) predicate.Predicate {
	return predicate.Compare{PathV: s.path, Op: predicate.Ne, Literal: valueorder.FromGo(v)}
}
func (s *Symbol) Lt(v any) predicate.Predicate {
	return predicate.Compare{PathV: s.path, Op: predicate.Lt, Literal: valueorder.FromGo(v)}
}
func (s *Symbol) Le(v any) predicate.Predicate {
	return predicate.Compare{PathV: s.path, Op: predicate.Le, Literal: valueorder.FromGo(v)}
}
func (s *Symbol) Gt(v any) predicate.Predicate {
	return predicate.Compare{PathV: s.path, Op: predicate.Gt, Literal: valueorder.FromGo(v)}
}
func (s *Symbol) Ge(v any) predicate.Predicate {
	return predicate.Compare{PathV: s.path, Op: predicate.Ge, Literal: valueorder.FromGo(v)}
}

// OneOf and In are aliases for a finite-set membership predicate.
func (s *Symbol) OneOf(vs ...any) predicate.Predicate {
	return predicate.Member{PathV: s.path, Values: valueorder.FromGoAll(vs)}
}
func (s *Symbol) In(vs ...any) predicate.Predicate { return s.OneOf(vs...) }

func (s *Symbol) Asc() predicate.OrderTerm  { return predicate.OrderTerm{PathV: s.path, Dir: predicate.Asc} }
func (s *Symbol) Desc() predicate.OrderTerm { return predicate.OrderTerm{PathV: s.path, Dir: predicate.Desc} }

// And, Or and Not are package-level combinators (`&`/`|`/`~` in the
// operator-overloaded original) producing compound predicate.Predicate
// nodes.
func And(ps ...predicate.Predicate) predicate.Predicate { return predicate.AndP(ps...) }
func Or(ps ...predicate.Predicate) predicate.Predicate  { return predicate.OrP(ps...) }
func Not(p predicate.Predicate) predicate.Predicate     { return predicate.NotP(p) }
