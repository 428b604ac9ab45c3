package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/ceilingd/internal/db"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestLedger_AppendAndQuery(t *testing.T) {
	l := openLedger(t)

	if err := l.Append(EventCommandApplied, "d073d5000001", map[string]any{"light": "uplight"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(EventCommandFailed, "d073d5000001", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(EventCommandApplied, "d073d5000002", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := l.BySerial("d073d5000001", 10)
	if err != nil {
		t.Fatalf("BySerial: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].EventType != EventCommandFailed {
		t.Errorf("newest entry = %s, want %s", entries[0].EventType, EventCommandFailed)
	}
	if entries[1].Payload["light"] != "uplight" {
		t.Errorf("payload = %v", entries[1].Payload)
	}

	applied, err := l.ByType(EventCommandApplied, 10)
	if err != nil {
		t.Fatalf("ByType: %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("got %d applied entries, want 2", len(applied))
	}
}

func TestLedger_DeleteOlderThan(t *testing.T) {
	l := openLedger(t)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base.Add(-48 * time.Hour) }
	if err := l.Append(EventCommandApplied, "old", nil); err != nil {
		t.Fatal(err)
	}
	l.now = func() time.Time { return base }
	if err := l.Append(EventCommandApplied, "new", nil); err != nil {
		t.Fatal(err)
	}

	n, err := l.DeleteOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}

	left, _ := l.ByType(EventCommandApplied, 10)
	if len(left) != 1 || left[0].Serial != "new" {
		t.Errorf("remaining = %+v", left)
	}
}
