package state

import (
	"path/filepath"
	"testing"

	"github.com/dokzlo13/ceilingd/internal/db"
)

type doc struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

func openStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database.DB)
}

func TestStore_VersionIncrements(t *testing.T) {
	s := openStore(t)

	payload, version, err := s.Get("k", "a")
	if err != nil || payload != nil || version != 0 {
		t.Fatalf("missing doc: payload=%v version=%d err=%v", payload, version, err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := s.Put("k", "a", []byte(`{}`))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if got != want {
			t.Errorf("version = %d, want %d", got, want)
		}
	}
}

func TestTypedStore_RoundTrip(t *testing.T) {
	typed := NewTypedStore[doc](openStore(t), "doc")

	if err := typed.Set("a", doc{Name: "a", Level: 3}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, version, err := typed.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if version != 1 || got != (doc{Name: "a", Level: 3}) {
		t.Errorf("got %+v v%d", got, version)
	}

	all, err := typed.All()
	if err != nil || len(all) != 1 {
		t.Fatalf("All: %v %v", all, err)
	}

	if err := typed.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if _, version, _ := typed.Get("a"); version != 0 {
		t.Errorf("version after delete = %d", version)
	}
}

func TestTypedStore_ClearIsPerKind(t *testing.T) {
	base := openStore(t)
	a := NewTypedStore[doc](base, "a")
	b := NewTypedStore[doc](base, "b")

	_ = a.Set("x", doc{})
	_ = b.Set("x", doc{})

	if err := a.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, v, _ := a.Get("x"); v != 0 {
		t.Error("kind a not cleared")
	}
	if _, v, _ := b.Get("x"); v != 1 {
		t.Error("kind b was cleared")
	}
}
