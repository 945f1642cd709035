package recordstore

import (
	"testing"

	"github.com/gloudx/recordstore/storeerr"
)

func TestTransactionCommitMakesChangesVisible(t *testing.T) {
	s := New()
	rid, _ := s.Create(map[string]any{"name": "fido", "age": 3})

	tx := s.Transaction()
	if err := tx.Update(rid, map[string]any{"age": 4}); err != nil {
		t.Fatalf("tx.Update: %v", err)
	}
	newRid, err := tx.Create(map[string]any{"name": "rex"})
	if err != nil {
		t.Fatalf("tx.Create: %v", err)
	}

	// base store must be unaffected before commit
	v, _ := s.Get(rid)
	age, _ := v.Value("age")
	if age.(float64) != 3 {
		t.Fatalf("base store should be unaffected pre-commit, age=%v", age)
	}
	if _, err := s.Get(newRid); err != storeerr.ErrNotFound {
		t.Fatal("staged create should not be visible in the base store pre-commit")
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v2, _ := s.Get(rid)
	age2, _ := v2.Value("age")
	if age2.(float64) != 4 {
		t.Fatalf("expected committed age 4, got %v", age2)
	}
	if _, err := s.Get(newRid); err != nil {
		t.Fatalf("expected staged create visible post-commit: %v", err)
	}
}

func TestTransactionRollbackDiscardsOverlay(t *testing.T) {
	s := New()
	rid, _ := s.Create(map[string]any{"age": 3})

	tx := s.Transaction()
	if err := tx.Update(rid, map[string]any{"age": 99}); err != nil {
		t.Fatalf("tx.Update: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	v, _ := s.Get(rid)
	age, _ := v.Value("age")
	if age.(float64) != 3 {
		t.Fatalf("expected rollback to leave base store unchanged, age=%v", age)
	}
}

func TestTransactionClosedRejectsFurtherOps(t *testing.T) {
	s := New()
	rid, _ := s.Create(map[string]any{"age": 3})
	tx := s.Transaction()
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Update(rid, map[string]any{"age": 1}); err != storeerr.ErrTransactionClosed {
		t.Fatalf("expected ErrTransactionClosed, got %v", err)
	}
	if err := tx.Rollback(); err != storeerr.ErrTransactionClosed {
		t.Fatalf("expected ErrTransactionClosed on double-close, got %v", err)
	}
}

func TestTransactionSelectSeesMergedState(t *testing.T) {
	s := New()
	s.Create(map[string]any{"id": 1, "name": "fido", "age": 3})
	s.Create(map[string]any{"id": 2, "name": "rex", "age": 5})

	tx := s.Transaction()
	if err := tx.Update(1, map[string]any{"age": 10}); err != nil {
		t.Fatalf("tx.Update: %v", err)
	}
	if _, err := tx.Create(map[string]any{"id": 3, "name": "spot", "age": 1}); err != nil {
		t.Fatalf("tx.Create: %v", err)
	}

	res, err := tx.Select().Where(Row("age").Gt(2)).Map()
	if err != nil {
		t.Fatalf("tx query: %v", err)
	}
	if len(res) != 2 { // fido(now 10) and rex(5); spot is 1, not > 2
		t.Fatalf("expected 2 matches against merged state, got %d", len(res))
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	res2, err := s.Select().Where(Row("age").Gt(2)).Map()
	if err != nil {
		t.Fatalf("post-commit query: %v", err)
	}
	if len(res2) != 2 {
		t.Fatalf("expected 2 matches post-commit, got %d", len(res2))
	}
}

func TestTransactionCreateThenDeleteIsNoOp(t *testing.T) {
	s := New()
	tx := s.Transaction()
	rid, err := tx.Create(map[string]any{"name": "ghost"})
	if err != nil {
		t.Fatalf("tx.Create: %v", err)
	}
	if err := tx.Delete(rid); err != nil {
		t.Fatalf("tx.Delete: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := s.Get(rid); err != storeerr.ErrNotFound {
		t.Fatal("create-then-delete within one transaction should never surface in the base store")
	}
}

func TestDoCommitsOnSuccessAndRollsBackOnError(t *testing.T) {
	s := New()
	rid, _ := s.Create(map[string]any{"age": 1})

	errBoom := storeerr.ErrBadOrdering
	err := s.Do(func(tx *Transaction) error {
		if e := tx.Update(rid, map[string]any{"age": 99}); e != nil {
			return e
		}
		return errBoom
	})
	if err != errBoom {
		t.Fatalf("expected errBoom, got %v", err)
	}
	v, _ := s.Get(rid)
	age, _ := v.Value("age")
	if age.(float64) != 1 {
		t.Fatalf("expected Do to roll back on error, age=%v", age)
	}

	err = s.Do(func(tx *Transaction) error {
		return tx.Update(rid, map[string]any{"age": 2})
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	v2, _ := s.Get(rid)
	age2, _ := v2.Value("age")
	if age2.(float64) != 2 {
		t.Fatalf("expected Do to commit on success, age=%v", age2)
	}
}
