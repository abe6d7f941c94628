package dupes

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAddAcrossPackets(t *testing.T) {
	db, err := Open("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, dup := db.Add("aa", "ONE.QWK"); dup {
		t.Error("first sighting reported as duplicate")
	}
	if _, dup := db.Add("aa", "ONE.QWK"); dup {
		t.Error("same packet reported as duplicate")
	}
	first, dup := db.Add("aa", "TWO.QWK")
	if !dup {
		t.Fatal("second packet not reported as duplicate")
	}
	if first.Packet != "ONE.QWK" {
		t.Errorf("first packet = %q, want ONE.QWK", first.Packet)
	}
	if db.Count() != 1 {
		t.Errorf("Count = %d, want 1", db.Count())
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.json")
	db, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	db.Add("aa", "ONE.QWK")
	db.Add("bb", "ONE.QWK")
	if err := db.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if again.Count() != 2 {
		t.Fatalf("reloaded Count = %d, want 2", again.Count())
	}
	if _, dup := again.Add("bb", "TWO.QWK"); !dup {
		t.Error("reloaded DB forgot a fingerprint")
	}
}

func TestPurge(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fp.json"), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now.Add(-48 * time.Hour) }
	db.Add("old", "ONE.QWK")
	db.now = func() time.Time { return now }
	db.Add("new", "TWO.QWK")

	if err := db.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if db.Count() != 1 {
		t.Errorf("Count after purge = %d, want 1", db.Count())
	}
	if _, dup := db.Add("old", "THREE.QWK"); dup {
		t.Error("purged fingerprint still reported")
	}
}

func TestCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fp.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	db, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if db.Count() != 0 {
		t.Errorf("Count = %d, want 0", db.Count())
	}
}
