package recordstore

import (
	"testing"

	"github.com/gloudx/recordstore/storeerr"
)

func TestViewSetAndDeleteKey(t *testing.T) {
	s := New()
	rid, _ := s.Create(map[string]any{"name": "fido"})
	v, _ := s.Get(rid)

	if err := v.Set("age", 3); err != nil {
		t.Fatalf("Set: %v", err)
	}
	age, err := v.Value("age")
	if err != nil || age.(float64) != 3 {
		t.Fatalf("Value(age) = %v, %v", age, err)
	}

	if err := v.DeleteKey("age"); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if _, err := v.Value("age"); err != storeerr.ErrKeyMissing {
		t.Fatalf("expected ErrKeyMissing, got %v", err)
	}
}

func TestViewSetDefault(t *testing.T) {
	s := New()
	rid, _ := s.Create(map[string]any{"name": "fido"})
	v, _ := s.Get(rid)

	got, err := v.SetDefault("age", 1)
	if err != nil || got.(float64) != 1 {
		t.Fatalf("SetDefault on missing key: %v, %v", got, err)
	}
	got2, err := v.SetDefault("age", 99)
	if err != nil || got2.(float64) != 1 {
		t.Fatalf("SetDefault should not overwrite existing key: %v, %v", got2, err)
	}
}

func TestViewUpdateAndMap(t *testing.T) {
	s := New()
	rid, _ := s.Create(map[string]any{"name": "fido"})
	v, _ := s.Get(rid)
	if err := v.Update(map[string]any{"age": 3, "breed": "lab"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	m, err := v.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if m["name"] != "fido" || m["breed"] != "lab" || m["age"].(float64) != 3 {
		t.Fatalf("unexpected map: %v", m)
	}
}

func TestViewDelete(t *testing.T) {
	s := New()
	rid, _ := s.Create(map[string]any{"name": "fido"})
	v, _ := s.Get(rid)
	if err := v.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := v.Delete(); err != storeerr.ErrNotFound {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}
