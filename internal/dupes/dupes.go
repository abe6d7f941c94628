// Package dupes remembers message fingerprints across packets so a message
// delivered again in a later packet can be reported.
package dupes

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

// DB maps fingerprints to the packet and time they were first seen. It
// persists to a JSON file.
type DB struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	maxAge  time.Duration
	now     func() time.Time
}

// Entry records where a fingerprint was first seen.
type Entry struct {
	Packet string `json:"packet"`
	Seen   int64  `json:"seen"` // Unix seconds
}

type dbFile struct {
	Entries map[string]Entry `json:"entries"`
}

// Open loads the database at path, or starts empty if it does not exist.
// An empty path keeps the database in memory only. Entries older than
// maxAge are dropped by Purge; zero keeps them forever.
func Open(path string, maxAge time.Duration) (*DB, error) {
	db := &DB{
		path:    path,
		entries: make(map[string]Entry),
		maxAge:  maxAge,
		now:     time.Now,
	}
	if path == "" {
		return db, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return db, nil
		}
		return nil, err
	}
	if len(data) > 0 {
		var f dbFile
		if err := json.Unmarshal(data, &f); err != nil {
			log.Printf("WARN: Corrupt fingerprint DB at %s, starting fresh: %v", path, err)
			return db, nil
		}
		if f.Entries != nil {
			db.entries = f.Entries
		}
	}
	return db, nil
}

// Add records fp as seen in packet. If fp was already recorded from a
// different packet, that earlier entry is returned with true. Seeing the
// same packet again is not a duplicate.
func (db *DB) Add(fp, packet string) (Entry, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if e, ok := db.entries[fp]; ok {
		return e, e.Packet != packet
	}
	db.entries[fp] = Entry{Packet: packet, Seen: db.now().Unix()}
	return Entry{}, false
}

// Purge removes entries older than maxAge and saves.
func (db *DB) Purge() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.maxAge > 0 {
		cutoff := db.now().Add(-db.maxAge).Unix()
		for fp, e := range db.entries {
			if e.Seen < cutoff {
				delete(db.entries, fp)
			}
		}
	}
	return db.saveLocked()
}

// Save persists the database.
func (db *DB) Save() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.saveLocked()
}

func (db *DB) saveLocked() error {
	if db.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(dbFile{Entries: db.entries}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(db.path, data, 0644)
}

// Count returns the number of remembered fingerprints.
func (db *DB) Count() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.entries)
}
