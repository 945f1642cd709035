package recordstore

import (
	"testing"

	"github.com/gloudx/recordstore/index"
	"github.com/gloudx/recordstore/predicate"
)

func seedDogs(t *testing.T, s *Store) {
	t.Helper()
	dogs := []map[string]any{
		{"id": 1, "name": "fido", "age": 3, "breed": "lab"},
		{"id": 2, "name": "rex", "age": 5, "breed": "lab"},
		{"id": 3, "name": "spot", "age": 1, "breed": "beagle"},
		{"id": 4, "name": "fang", "age": 8, "breed": "beagle"},
	}
	for _, d := range dogs {
		if _, err := s.Create(d); err != nil {
			t.Fatalf("seed Create: %v", err)
		}
	}
}

func TestQueryWhereEquality(t *testing.T) {
	s := New()
	seedDogs(t, s)

	res, err := s.Select().Where(Row("breed").Eq("lab")).Map()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 labs, got %d", len(res))
	}
}

func TestQueryRangeAndCompound(t *testing.T) {
	s := New()
	seedDogs(t, s)

	res, err := s.Select().Where(And(Row("age").Gt(2), Row("breed").Eq("lab"))).List()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
}

func TestQueryOrderByLimitOffset(t *testing.T) {
	s := New()
	seedDogs(t, s)

	res, err := s.Select().OrderBy(Row("age").Asc()).Limit(2).Offset(1).List()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	first := res[0].(map[string]any)
	if first["name"] != "fido" {
		t.Fatalf("expected fido (age 3) first after skipping spot (age 1), got %v", first["name"])
	}
}

func TestQueryOneOf(t *testing.T) {
	s := New()
	seedDogs(t, s)

	res, err := s.Select().Where(Row("breed").OneOf("beagle")).Map()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 beagles, got %d", len(res))
	}
}

func TestQueryNot(t *testing.T) {
	s := New()
	seedDogs(t, s)

	res, err := s.Select().Where(Not(Row("breed").Eq("lab"))).Map()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 non-labs, got %d", len(res))
	}
}

func TestQueryProjection(t *testing.T) {
	s := New()
	seedDogs(t, s)

	res, err := s.Select("name").Where(Row("id").Eq(1)).List()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res))
	}
	row := res[0].(map[string]any)
	if row["name"] != "fido" {
		t.Fatalf("unexpected projected row: %v", row)
	}
	if _, ok := row["age"]; ok {
		t.Fatal("age should not appear in a projection restricted to name")
	}
}

func TestQueryDelete(t *testing.T) {
	s := New()
	seedDogs(t, s)

	if err := s.Select().Where(Row("breed").Eq("beagle")).Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	res, err := s.Select().Map()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 remaining dogs, got %d", len(res))
	}
}

func TestQueryUpdate(t *testing.T) {
	s := New()
	seedDogs(t, s)

	if err := s.Select().Where(Row("breed").Eq("lab")).Update(map[string]any{"vaccinated": true}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	res, err := s.Select().Where(Row("vaccinated").Eq(true)).Map()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 vaccinated labs, got %d", len(res))
	}
}

func TestQueryRawJQ(t *testing.T) {
	s := New()
	seedDogs(t, s)

	res, err := s.Select().Raw(".age > 4").List()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 dogs older than 4, got %d", len(res))
	}
}

func TestQueryBadPredicate(t *testing.T) {
	s := New()
	bad := predicate.Compare{}
	if _, err := s.Select().Where(bad).Map(); err == nil {
		t.Fatal("expected ErrBadPredicate for an empty-path compare leaf")
	}
}

// A record that never set the queried attribute must be treated as holding
// null there: null sorts below every other kind, so Lt/Le/Ne against a
// non-null literal has to include it even though the attribute's index
// never saw that rid.
func TestQueryMissingAttributeIsNull(t *testing.T) {
	s := New()
	withAge, err := s.Create(map[string]any{"id": 1, "age": 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	noAge, err := s.Create(map[string]any{"id": 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	assertRids := func(t *testing.T, got map[Rid]any, want ...Rid) {
		t.Helper()
		wantSet := index.NewRidSet(want...)
		if len(got) != len(wantSet) {
			t.Fatalf("expected rids %v, got %v", want, got)
		}
		for rid := range got {
			if !wantSet.Has(rid) {
				t.Fatalf("expected rids %v, got %v", want, got)
			}
		}
	}

	lt, err := s.Select().Where(Row("age").Lt(10)).Map()
	if err != nil {
		t.Fatalf("Lt query: %v", err)
	}
	assertRids(t, lt, withAge, noAge)

	le, err := s.Select().Where(Row("age").Le(5)).Map()
	if err != nil {
		t.Fatalf("Le query: %v", err)
	}
	assertRids(t, le, withAge, noAge)

	ne, err := s.Select().Where(Row("age").Ne(5)).Map()
	if err != nil {
		t.Fatalf("Ne query: %v", err)
	}
	assertRids(t, ne, noAge)

	gt, err := s.Select().Where(Row("age").Gt(1)).Map()
	if err != nil {
		t.Fatalf("Gt query: %v", err)
	}
	assertRids(t, gt, withAge)

	ge, err := s.Select().Where(Row("age").Ge(5)).Map()
	if err != nil {
		t.Fatalf("Ge query: %v", err)
	}
	assertRids(t, ge, withAge)
}

// When no record has ever set the attribute at all, every rid still
// compares as null: Eq(null)/Ne(non-null)/Lt(non-null)/Le(anything) match
// the whole store, and the reverse ops match nothing.
func TestQueryCompareNoIndexAtAll(t *testing.T) {
	s := New()
	first, err := s.Create(map[string]any{"id": 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := s.Create(map[string]any{"id": 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ne, err := s.Select().Where(Row("missing").Ne(5)).Map()
	if err != nil {
		t.Fatalf("Ne query: %v", err)
	}
	if _, ok := ne[first]; !ok {
		t.Fatalf("expected rid %v for Ne against an unindexed attribute, got %v", first, ne)
	}
	if _, ok := ne[second]; !ok {
		t.Fatalf("expected rid %v for Ne against an unindexed attribute, got %v", second, ne)
	}
	if len(ne) != 2 {
		t.Fatalf("expected both rids for Ne against an unindexed attribute, got %v", ne)
	}

	eq, err := s.Select().Where(Row("missing").Eq(5)).Map()
	if err != nil {
		t.Fatalf("Eq query: %v", err)
	}
	if len(eq) != 0 {
		t.Fatalf("expected no rids for Eq(5) against an unindexed attribute, got %v", eq)
	}
}
