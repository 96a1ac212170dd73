package catalog

import (
	"path/filepath"
	"testing"
	"time"
)

func TestUpsertAndList(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := Record{
		Path:         filepath.Join(dir, "session-1.json"),
		SessionID:    "s1",
		Transport:    "stdio",
		StartedAt:    started,
		MessageCount: 4,
	}
	if err := idx.Upsert(rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	ended := started.Add(time.Minute)
	rec.EndedAt = &ended
	rec.MessageCount = 6
	if err := idx.Upsert(rec); err != nil {
		t.Fatalf("Upsert (update): %v", err)
	}

	got, err := idx.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List() returned %d records, want 1", len(got))
	}
	if got[0].MessageCount != 6 {
		t.Errorf("MessageCount = %d, want 6 (update should have replaced the row)", got[0].MessageCount)
	}
	if got[0].EndedAt == nil {
		t.Error("EndedAt should be set after update")
	}
}

func TestListEmpty(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	got, err := idx.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("List() = %v, want empty", got)
	}
}
