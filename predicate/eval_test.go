package predicate

import (
	"testing"

	"github.com/gloudx/recordstore/valueorder"
)

func lookupFromMap(m map[string]valueorder.Value) Lookup {
	return func(p Path) (valueorder.Value, bool) {
		if len(p) != 1 {
			return valueorder.Null(), false
		}
		v, ok := m[p[0]]
		return v, ok
	}
}

func TestEvalCompareMissingIsNull(t *testing.T) {
	lookup := lookupFromMap(map[string]valueorder.Value{})
	// missing attribute compares as null, which is less than any number
	if !Eval(LessThan("age", 1), lookup) {
		t.Fatal("missing attribute should compare as null, less than 1")
	}
	if Eval(GreaterThan("age", 1), lookup) {
		t.Fatal("missing attribute should not be greater than 1")
	}
}

func TestEvalAndOrNot(t *testing.T) {
	lookup := lookupFromMap(map[string]valueorder.Value{
		"age":  valueorder.Number(5),
		"name": valueorder.String("fido"),
	})
	p := AndP(Eql("age", 5.0), Eql("name", "fido"))
	if !Eval(p, lookup) {
		t.Fatal("expected And predicate to match")
	}
	if Eval(NotP(p), lookup) {
		t.Fatal("expected negation to not match")
	}
	p2 := OrP(Eql("age", 1.0), Eql("name", "fido"))
	if !Eval(p2, lookup) {
		t.Fatal("expected Or predicate to match on second branch")
	}
}

func TestEvalMemberAndNotMember(t *testing.T) {
	lookup := lookupFromMap(map[string]valueorder.Value{"age": valueorder.Number(5)})
	if !Eval(OneOf("age", 1.0, 5.0, 9.0), lookup) {
		t.Fatal("expected OneOf to match")
	}
	norm := Normalize(NotP(OneOf("age", 1.0, 2.0)))
	if !Eval(norm, lookup) {
		t.Fatal("expected NotMember to match when value is not in the set")
	}
}
