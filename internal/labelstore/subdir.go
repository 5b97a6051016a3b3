package labelstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mbaylis/curator/internal/errors"
)

// SubdirStore applies a tag to an item by moving its backing file into a
// tag-named subdirectory. Presence in any tag subdirectory is completion;
// no separate completion marker exists. An item therefore carries at most
// one tag under this backend.
type SubdirStore struct {
	dir string
}

// NewSubdirStore creates a store rooted at the session's item directory.
func NewSubdirStore(dir string) (*SubdirStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required: %w", errors.ErrInvalidInput)
	}
	return &SubdirStore{dir: dir}, nil
}

// locate returns the path itemID currently lives at and the tag of the
// subdirectory holding it ("" when it is still unlabeled in the root).
func (s *SubdirStore) locate(itemID string) (path string, tag string, err error) {
	rootPath := filepath.Join(s.dir, itemID)
	if _, err := os.Stat(rootPath); err == nil {
		return rootPath, "", nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", "", fmt.Errorf("failed to read store directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(s.dir, entry.Name(), itemID)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, entry.Name(), nil
		}
	}
	return "", "", fmt.Errorf("item %q: %w", itemID, errors.ErrItemNotFound)
}

// ListItems returns every item in the root directory or any tag
// subdirectory, sorted.
func (s *SubdirStore) ListItems() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var items []string
	for _, entry := range entries {
		if !entry.IsDir() {
			items = append(items, entry.Name())
			continue
		}
		sub, err := os.ReadDir(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read tag directory %q: %w", entry.Name(), err)
		}
		for _, file := range sub {
			if !file.IsDir() {
				items = append(items, file.Name())
			}
		}
	}
	sort.Strings(items)
	return items, nil
}

// ListCompleted returns every item currently inside a tag subdirectory.
// The campaign name is irrelevant for this backend: the move itself is
// the completion record.
func (s *SubdirStore) ListCompleted(campaign string) (map[string]bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	completed := make(map[string]bool)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub, err := os.ReadDir(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read tag directory %q: %w", entry.Name(), err)
		}
		for _, file := range sub {
			if !file.IsDir() {
				completed[file.Name()] = true
			}
		}
	}
	return completed, nil
}

// ApplyTag moves itemID into the tag subdirectory, creating it if needed.
// Re-applying the current tag is a no-op; applying a different tag moves
// the file between subdirectories.
func (s *SubdirStore) ApplyTag(itemID, tag string) error {
	current, currentTag, err := s.locate(itemID)
	if err != nil {
		return err
	}
	if currentTag == tag {
		return nil
	}

	tagDir := filepath.Join(s.dir, tag)
	if err := os.MkdirAll(tagDir, 0755); err != nil {
		return fmt.Errorf("failed to create tag directory: %w", err)
	}
	if err := os.Rename(current, filepath.Join(tagDir, itemID)); err != nil {
		return fmt.Errorf("failed to move item into tag directory: %w", err)
	}
	return nil
}

// RemoveTag moves itemID back into the root directory if it currently
// carries tag. Removing a tag the item does not carry is a no-op.
func (s *SubdirStore) RemoveTag(itemID, tag string) error {
	current, currentTag, err := s.locate(itemID)
	if err != nil {
		return err
	}
	if currentTag != tag {
		return nil
	}
	if err := os.Rename(current, filepath.Join(s.dir, itemID)); err != nil {
		return fmt.Errorf("failed to move item out of tag directory: %w", err)
	}
	return nil
}

// MarkComplete is a no-op: presence in a tag subdirectory is completion.
func (s *SubdirStore) MarkComplete(itemID, campaign string) error {
	return nil
}

// AppliedTags returns the tag of the subdirectory holding itemID, or
// nothing if the item is unlabeled.
func (s *SubdirStore) AppliedTags(itemID string) ([]string, error) {
	_, tag, err := s.locate(itemID)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return nil, nil
	}
	return []string{tag}, nil
}

// ToData returns the serialized form of the store.
func (s *SubdirStore) ToData() Data {
	return Data{Type: TypeSubdirectory}
}
