package labelstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mbaylis/curator/internal/errors"
)

// setupItems creates a directory with the given item files in it.
func setupItems(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestSubdirStore_ApplyTagMovesFile(t *testing.T) {
	dir := setupItems(t, "a.png", "b.png")
	store, err := NewSubdirStore(dir)
	if err != nil {
		t.Fatalf("NewSubdirStore failed: %v", err)
	}

	if err := store.ApplyTag("a.png", "dog"); err != nil {
		t.Fatalf("ApplyTag failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "dog", "a.png")); err != nil {
		t.Errorf("item not found in tag directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.png")); !os.IsNotExist(err) {
		t.Error("item still present in root directory after tagging")
	}

	tags, err := store.AppliedTags("a.png")
	if err != nil {
		t.Fatalf("AppliedTags failed: %v", err)
	}
	if len(tags) != 1 || tags[0] != "dog" {
		t.Errorf("AppliedTags = %v, want [dog]", tags)
	}
}

func TestSubdirStore_CompletionIsPresence(t *testing.T) {
	dir := setupItems(t, "a.png", "b.png")
	store, err := NewSubdirStore(dir)
	if err != nil {
		t.Fatalf("NewSubdirStore failed: %v", err)
	}

	if err := store.ApplyTag("a.png", "cat"); err != nil {
		t.Fatalf("ApplyTag failed: %v", err)
	}
	// MarkComplete needs no extra record.
	if err := store.MarkComplete("a.png", "campaign one"); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}

	completed, err := store.ListCompleted("campaign one")
	if err != nil {
		t.Fatalf("ListCompleted failed: %v", err)
	}
	if !completed["a.png"] {
		t.Error("tagged item should be completed")
	}
	if completed["b.png"] {
		t.Error("untagged item should not be completed")
	}
}

func TestSubdirStore_RemoveTagMovesBack(t *testing.T) {
	dir := setupItems(t, "a.png")
	store, err := NewSubdirStore(dir)
	if err != nil {
		t.Fatalf("NewSubdirStore failed: %v", err)
	}

	if err := store.ApplyTag("a.png", "dog"); err != nil {
		t.Fatalf("ApplyTag failed: %v", err)
	}
	// Removing a tag the item does not carry is a no-op.
	if err := store.RemoveTag("a.png", "cat"); err != nil {
		t.Fatalf("RemoveTag(no-op) failed: %v", err)
	}
	if err := store.RemoveTag("a.png", "dog"); err != nil {
		t.Fatalf("RemoveTag failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "a.png")); err != nil {
		t.Errorf("item not restored to root: %v", err)
	}
	tags, err := store.AppliedTags("a.png")
	if err != nil {
		t.Fatalf("AppliedTags failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("AppliedTags after removal = %v, want empty", tags)
	}
}

func TestSubdirStore_RetagMovesBetweenDirectories(t *testing.T) {
	dir := setupItems(t, "a.png")
	store, err := NewSubdirStore(dir)
	if err != nil {
		t.Fatalf("NewSubdirStore failed: %v", err)
	}

	if err := store.ApplyTag("a.png", "dog"); err != nil {
		t.Fatalf("ApplyTag failed: %v", err)
	}
	// Idempotent re-apply.
	if err := store.ApplyTag("a.png", "dog"); err != nil {
		t.Fatalf("ApplyTag(repeat) failed: %v", err)
	}
	if err := store.ApplyTag("a.png", "cat"); err != nil {
		t.Fatalf("ApplyTag(retag) failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "cat", "a.png")); err != nil {
		t.Errorf("item not in new tag directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dog", "a.png")); !os.IsNotExist(err) {
		t.Error("item still in old tag directory")
	}
}

func TestSubdirStore_ListItems(t *testing.T) {
	dir := setupItems(t, "b.png", "a.png")
	store, err := NewSubdirStore(dir)
	if err != nil {
		t.Fatalf("NewSubdirStore failed: %v", err)
	}

	if err := store.ApplyTag("b.png", "dog"); err != nil {
		t.Fatalf("ApplyTag failed: %v", err)
	}

	items, err := store.ListItems()
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 2 || items[0] != "a.png" || items[1] != "b.png" {
		t.Errorf("ListItems = %v, want [a.png b.png]", items)
	}
}

func TestSubdirStore_UnknownItem(t *testing.T) {
	dir := setupItems(t)
	store, err := NewSubdirStore(dir)
	if err != nil {
		t.Fatalf("NewSubdirStore failed: %v", err)
	}

	if err := store.ApplyTag("ghost.png", "dog"); !errors.Is(err, errors.ErrItemNotFound) {
		t.Errorf("ApplyTag on missing item = %v, want ErrItemNotFound", err)
	}
	if _, err := store.AppliedTags("ghost.png"); !errors.Is(err, errors.ErrItemNotFound) {
		t.Errorf("AppliedTags on missing item = %v, want ErrItemNotFound", err)
	}
}
