package collection

import (
	"path/filepath"
	"testing"
)

// note is a minimal Record for exercising the backends.
type note struct {
	ID   int    `json:"id"`
	Body string `json:"body"`
}

func (n note) RecordID() int { return n.ID }

// storeUnderTest lets both backends share one test body.
type storeUnderTest struct {
	name  string
	build func(t *testing.T) Store[note]
}

func backends(t *testing.T) []storeUnderTest {
	t.Helper()
	return []storeUnderTest{
		{
			name: "file",
			build: func(t *testing.T) Store[note] {
				store, err := NewFileStore[note](filepath.Join(t.TempDir(), "notes"))
				if err != nil {
					t.Fatalf("NewFileStore failed: %v", err)
				}
				return store
			},
		},
		{
			name: "sqlite",
			build: func(t *testing.T) Store[note] {
				db, err := OpenDB(filepath.Join(t.TempDir(), "curator.db"))
				if err != nil {
					t.Fatalf("OpenDB failed: %v", err)
				}
				t.Cleanup(func() { db.Close() })
				store, err := NewSQLiteStore[note](db, "notes")
				if err != nil {
					t.Fatalf("NewSQLiteStore failed: %v", err)
				}
				return store
			},
		},
	}
}

func TestStore_UpsertListRemove(t *testing.T) {
	for _, backend := range backends(t) {
		t.Run(backend.name, func(t *testing.T) {
			store := backend.build(t)

			if err := store.Upsert(note{ID: 2, Body: "second"}); err != nil {
				t.Fatalf("Upsert failed: %v", err)
			}
			if err := store.Upsert(note{ID: 1, Body: "first"}); err != nil {
				t.Fatalf("Upsert failed: %v", err)
			}

			records, err := store.List()
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(records) != 2 || records[0].ID != 1 || records[1].ID != 2 {
				t.Fatalf("List = %+v, want ids [1 2] in order", records)
			}

			// Upsert replaces by id.
			if err := store.Upsert(note{ID: 1, Body: "updated"}); err != nil {
				t.Fatalf("Upsert(replace) failed: %v", err)
			}
			records, err = store.List()
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(records) != 2 || records[0].Body != "updated" {
				t.Fatalf("List after replace = %+v, want body updated", records)
			}

			if err := store.Remove(1); err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
			// Removing an absent id is a no-op.
			if err := store.Remove(99); err != nil {
				t.Fatalf("Remove(absent) failed: %v", err)
			}

			records, err = store.List()
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(records) != 1 || records[0].ID != 2 {
				t.Fatalf("List after remove = %+v, want only id 2", records)
			}
		})
	}
}

func TestSQLiteStore_SharedDatabase(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "curator.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	first, err := NewSQLiteStore[note](db, "sessions")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	second, err := NewSQLiteStore[note](db, "drafts")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	if err := first.Upsert(note{ID: 1, Body: "session"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	records, err := second.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("collections must be independent, drafts = %+v", records)
	}
}

func TestNewSQLiteStore_RejectsBadTableName(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "curator.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := NewSQLiteStore[note](db, "drop table; --"); err == nil {
		t.Error("expected error for malformed table name")
	}
}

func TestNextFreeID(t *testing.T) {
	tests := []struct {
		name    string
		records []note
		want    int
	}{
		{"empty", nil, 1},
		{"contiguous", []note{{ID: 1}, {ID: 2}}, 3},
		{"gap reused", []note{{ID: 1}, {ID: 3}}, 2},
		{"front gap reused", []note{{ID: 2}, {ID: 3}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextFreeID(tt.records); got != tt.want {
				t.Errorf("NextFreeID(%v) = %d, want %d", tt.records, got, tt.want)
			}
		})
	}
}
