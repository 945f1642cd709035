package recordstore

import (
	"sync"
	"testing"

	"github.com/gloudx/recordstore/storeerr"
)

// TestScenarioEventTransaction covers the seed suite's event transaction:
// delete clicks past a time threshold and uppercase surviving press chars,
// all inside one transaction, then verify the committed state.
func TestScenarioEventTransaction(t *testing.T) {
	s := New()
	s.Create(map[string]any{"id": 1, "kind": "press", "char": "x", "time": 1})
	s.Create(map[string]any{"id": 2, "kind": "click", "button": "L", "pos": []any{5, 8}, "time": 2})
	s.Create(map[string]any{"id": 3, "kind": "click", "button": "R", "pos": []any{3, 4}, "time": 3})
	s.Create(map[string]any{"id": 4, "kind": "press", "char": "y", "time": 4})

	err := s.Do(func(tx *Transaction) error {
		if err := tx.Select().Where(And(Row("kind").Eq("click"), Row("time").Gt(2))).Delete(); err != nil {
			return err
		}
		rows, err := tx.Select().Where(And(
			Row("kind").Eq("press"),
			Row("char").OneOf("x", "y", "z"),
		)).Map()
		if err != nil {
			return err
		}
		for rid := range rows {
			rec, err := tx.Get(rid)
			if err != nil {
				return err
			}
			ch := rec["char"].(string)
			upper := map[string]rune{"x": 'X', "y": 'Y', "z": 'Z'}[ch]
			if err := tx.Update(rid, map[string]any{"char": string(upper)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	all, err := s.Select().Map()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records total, got %d", len(all))
	}

	clicks, _ := s.Select().Where(Row("kind").Eq("click")).Map()
	if len(clicks) != 1 {
		t.Fatalf("expected exactly 1 surviving click, got %d", len(clicks))
	}
	if clicks[2].(map[string]any)["button"] != "L" {
		t.Fatalf("expected rid 2 (button L) to survive, got %v", clicks)
	}

	presses, _ := s.Select().Where(Row("kind").Eq("press")).Map()
	if presses[1].(map[string]any)["char"] != "X" || presses[4].(map[string]any)["char"] != "Y" {
		t.Fatalf("expected press chars uppercased to X and Y, got %v", presses)
	}
}

// TestScenarioIdentityAcrossReferences covers the seed suite's identity
// scenario: two Get calls for the same rid observe each other's writes
// through the shared live view.
func TestScenarioIdentityAcrossReferences(t *testing.T) {
	s := New()
	rid, err := s.Create(map[string]any{"id": 1, "name": "frank"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	a, _ := s.Get(rid)
	b, _ := s.Get(1)

	if err := a.Set("name", "Franklin"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	name, err := b.Value("name")
	if err != nil || name != "Franklin" {
		t.Fatalf("expected b to observe a's write, got %v, %v", name, err)
	}
}

// TestScenarioNestedValueOrdering covers ordering by a dotted path into a
// nested map attribute.
func TestScenarioNestedValueOrdering(t *testing.T) {
	s := New()
	s.Create(map[string]any{"owner": "M", "dog": map[string]any{"age": 10}})
	s.Create(map[string]any{"owner": "K", "dog": map[string]any{"age": 6}})

	res, err := s.Select().OrderBy(Row("dog").Attr("age").Asc()).List()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res))
	}
	if res[0].(map[string]any)["owner"] != "K" {
		t.Fatalf("expected K (dog.age=6) first, got %v", res[0])
	}
}

// TestScenarioRollback covers the seed suite's rollback scenario: deleting
// rid 1 inside a transaction that then errors must leave the base store
// untouched.
func TestScenarioRollback(t *testing.T) {
	s := New()
	s.Create(map[string]any{"id": 1, "name": "keep-me"})

	boom := storeerr.ErrBadOrdering
	err := s.Do(func(tx *Transaction) error {
		if err := tx.Delete(1); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected the raised error to propagate, got %v", err)
	}
	if _, err := s.Get(1); err != nil {
		t.Fatalf("expected rid 1 to survive rollback, got %v", err)
	}
}

// TestScenarioCompoundPredicate covers the seed suite's compound predicate:
// (s=='smelly') & (i<=20000) over three records.
func TestScenarioCompoundPredicate(t *testing.T) {
	s := New()
	s.Create(map[string]any{"id": 1, "s": "smelly", "i": 10000})
	s.Create(map[string]any{"id": 2, "s": "sweet", "i": 500})
	s.Create(map[string]any{"id": 3, "s": "smelly", "i": 50000})

	res, err := s.Select().Where(And(Row("s").Eq("smelly"), Row("i").Le(20000))).Map()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected exactly 1 match, got %d: %v", len(res), res)
	}
	if _, ok := res[1]; !ok {
		t.Fatalf("expected rid 1 to be the sole match, got %v", res)
	}
}

// TestScenarioConcurrentCommitAtomicity covers the seed suite's concurrency
// scenario: a reader must never observe a half-applied commit of two
// attributes on two different records.
func TestScenarioConcurrentCommitAtomicity(t *testing.T) {
	s := New()
	s.Create(map[string]any{"id": 1, "val": 0})
	s.Create(map[string]any{"id": 2, "val": 0})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var mismatch bool
	var mismatchMu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			res, err := s.Select().Where(Row("id").OneOf(1, 2)).Map()
			if err != nil {
				continue
			}
			a := res[1].(map[string]any)["val"].(float64)
			b := res[2].(map[string]any)["val"].(float64)
			if a != b {
				mismatchMu.Lock()
				mismatch = true
				mismatchMu.Unlock()
			}
		}
	}()

	for i := 1; i <= 50; i++ {
		err := s.Do(func(tx *Transaction) error {
			if err := tx.Update(1, map[string]any{"val": i}); err != nil {
				return err
			}
			return tx.Update(2, map[string]any{"val": i})
		})
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	close(stop)
	wg.Wait()

	mismatchMu.Lock()
	defer mismatchMu.Unlock()
	if mismatch {
		t.Fatal("reader observed a torn commit: val(1) != val(2) at some point")
	}
}
