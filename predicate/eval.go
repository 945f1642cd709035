package predicate

import "github.com/gloudx/recordstore/valueorder"

// Lookup resolves a Path against a record, reporting whether the path
// existed. Implementations should return (valueorder.Null(), false) for a
// missing attribute rather than failing: §4.4's error modes reserve
// BadPredicate for a malformed AST, not a missing value.
type Lookup func(p Path) (valueorder.Value, bool)

// Eval evaluates p against whatever record lookup resolves, per §4.4's
// "missing attribute yields null for comparison purposes" rule: a Compare
// against a missing attribute always compares against valueorder.Null().
func Eval(p Predicate, lookup Lookup) bool {
	switch n := p.(type) {
	case True:
		return true
	case False:
		return false
	case And:
		return Eval(n.Left, lookup) && Eval(n.Right, lookup)
	case Or:
		return Eval(n.Left, lookup) || Eval(n.Right, lookup)
	case Not:
		return !Eval(n.P, lookup)
	case Compare:
		return evalCompare(n, lookup)
	case Member:
		return evalMember(n, lookup)
	case NotMember:
		return !evalMember(Member{PathV: n.PathV, Values: n.Values}, lookup)
	default:
		return false
	}
}

func evalCompare(n Compare, lookup Lookup) bool {
	v, ok := lookup(n.PathV)
	if !ok {
		v = valueorder.Null()
	}
	c := valueorder.Compare(v, n.Literal)
	switch n.Op {
	case Eq:
		return c == 0
	case Ne:
		return c != 0
	case Lt:
		return c < 0
	case Le:
		return c <= 0
	case Gt:
		return c > 0
	case Ge:
		return c >= 0
	}
	return false
}

func evalMember(n Member, lookup Lookup) bool {
	v, ok := lookup(n.PathV)
	if !ok {
		v = valueorder.Null()
	}
	for _, candidate := range n.Values {
		if valueorder.Equal(v, candidate) {
			return true
		}
	}
	return false
}

// Validate reports storeerr.ErrBadPredicate-worthy malformations: an empty
// path on a leaf. The query layer reports any such error as
// storeerr.ErrBadPredicate.
func Validate(p Predicate) error {
	switch n := p.(type) {
	case Compare:
		if len(n.PathV) == 0 {
			return errEmptyPath
		}
	case Member:
		if len(n.PathV) == 0 {
			return errEmptyPath
		}
	case NotMember:
		if len(n.PathV) == 0 {
			return errEmptyPath
		}
	case And:
		if err := Validate(n.Left); err != nil {
			return err
		}
		return Validate(n.Right)
	case Or:
		if err := Validate(n.Left); err != nil {
			return err
		}
		return Validate(n.Right)
	case Not:
		return Validate(n.P)
	}
	return nil
}

type pathError struct{ msg string }

func (e *pathError) Error() string { return e.msg }

var errEmptyPath = &pathError{msg: "predicate: leaf references no attribute"}

// ErrEmptyPath is the sentinel Validate returns for a leaf with no path;
// the query layer replaces it with storeerr.ErrBadPredicate.
var ErrEmptyPath error = errEmptyPath
