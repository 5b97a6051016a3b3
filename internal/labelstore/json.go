package labelstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mbaylis/curator/internal/errors"
)

// CompletedKey is the reserved per-record key holding the list of
// campaigns that have completed the item. Colliding with it in existing
// data is a schema conflict, never silently repaired.
const CompletedKey = "__sessions_completed"

// sharedFile serializes read-modify-write cycles on one underlying JSON
// file. Two campaigns configured against the same path share one
// sharedFile, so their commits cannot interleave.
type sharedFile struct {
	path string
	mu   sync.Mutex
}

var (
	filesMu sync.Mutex
	files   = make(map[string]*sharedFile)
)

// fileFor returns the sharedFile for path, keyed by absolute path.
func fileFor(path string) (*sharedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path: %w", err)
	}
	filesMu.Lock()
	defer filesMu.Unlock()
	if f, ok := files[abs]; ok {
		return f, nil
	}
	f := &sharedFile{path: abs}
	files[abs] = f
	return f, nil
}

// JSONStore keeps labels in a single JSON object keyed by item id. Each
// record holds a completion-set array under CompletedKey plus one tags
// array under the campaign's chosen tag key. Unrecognized sibling keys in
// a record are preserved verbatim on every write.
type JSONStore struct {
	file   *sharedFile
	tagKey string
}

// NewJSONStore creates a store over the JSON file at path, using tagKey
// for this campaign's tags array.
func NewJSONStore(path, tagKey string) (*JSONStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store file path is required: %w", errors.ErrInvalidInput)
	}
	if tagKey == "" {
		return nil, fmt.Errorf("tag key is required: %w", errors.ErrInvalidInput)
	}
	if tagKey == CompletedKey {
		return nil, fmt.Errorf("tag key %q is reserved: %w", tagKey, errors.ErrInvalidInput)
	}
	file, err := fileFor(path)
	if err != nil {
		return nil, err
	}
	return &JSONStore{file: file, tagKey: tagKey}, nil
}

// record is the decoded form of one item's entry. fields carries every
// key verbatim; completed and tags are the two keys this store owns.
type record struct {
	fields    map[string]json.RawMessage
	completed []string
	tags      []string
}

// load reads and parses the whole store file. A missing file is an empty
// store.
func (s *JSONStore) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.file.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]json.RawMessage), nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return make(map[string]json.RawMessage), nil
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.NewStoreError(
			fmt.Sprintf("store file is not a JSON object: %v", err),
			errors.ErrSchemaConflict,
		)
	}
	if root == nil {
		root = make(map[string]json.RawMessage)
	}
	return root, nil
}

// decodeRecord validates and decodes the entry for itemID; a missing
// entry yields a fresh record. The shape rules are strict: the entry must
// be an object, and the completion key and tag key, when present, must be
// arrays of strings. Anything else is a schema conflict.
func (s *JSONStore) decodeRecord(root map[string]json.RawMessage, itemID string) (*record, error) {
	rec := &record{fields: make(map[string]json.RawMessage)}

	raw, ok := root[itemID]
	if !ok {
		return rec, nil
	}

	if err := json.Unmarshal(raw, &rec.fields); err != nil {
		return nil, errors.NewStoreError(
			"item id already points to a non-object value in the store file",
			errors.ErrSchemaConflict,
		).WithItemID(itemID)
	}

	if rawCompleted, ok := rec.fields[CompletedKey]; ok {
		if err := json.Unmarshal(rawCompleted, &rec.completed); err != nil {
			return nil, errors.NewStoreError(
				"completion key already points to a non-array value in the store file",
				errors.ErrSchemaConflict,
			).WithItemID(itemID).WithKey(CompletedKey)
		}
	}
	if rawTags, ok := rec.fields[s.tagKey]; ok {
		if err := json.Unmarshal(rawTags, &rec.tags); err != nil {
			return nil, errors.NewStoreError(
				"tag key already points to a non-array value in the store file",
				errors.ErrSchemaConflict,
			).WithItemID(itemID).WithKey(s.tagKey)
		}
	}
	return rec, nil
}

// encodeRecord re-encodes rec, overwriting only the two owned keys.
func (s *JSONStore) encodeRecord(rec *record) (json.RawMessage, error) {
	completed, err := json.Marshal(rec.completed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion set: %w", err)
	}
	tags, err := json.Marshal(rec.tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	if rec.completed == nil {
		completed = json.RawMessage("[]")
	}
	if rec.tags == nil {
		tags = json.RawMessage("[]")
	}

	rec.fields[CompletedKey] = completed
	rec.fields[s.tagKey] = tags

	encoded, err := json.Marshal(rec.fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return encoded, nil
}

// update runs one locked read-modify-write cycle against itemID's record.
// If mutate returns an error, the file is left untouched.
func (s *JSONStore) update(itemID string, mutate func(rec *record) error) error {
	s.file.mu.Lock()
	defer s.file.mu.Unlock()

	root, err := s.load()
	if err != nil {
		return err
	}
	rec, err := s.decodeRecord(root, itemID)
	if err != nil {
		return err
	}
	if err := mutate(rec); err != nil {
		return err
	}

	encoded, err := s.encodeRecord(rec)
	if err != nil {
		return err
	}
	root[itemID] = encoded

	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.file.path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return atomicWriteFile(s.file.path, data, 0644)
}

// ListItems returns the ids of every record in the store, sorted.
func (s *JSONStore) ListItems() ([]string, error) {
	s.file.mu.Lock()
	defer s.file.mu.Unlock()

	root, err := s.load()
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, len(root))
	for itemID := range root {
		items = append(items, itemID)
	}
	sort.Strings(items)
	return items, nil
}

// ListCompleted scans all records and returns those whose completion set
// contains campaign. Every scanned record is shape-checked.
func (s *JSONStore) ListCompleted(campaign string) (map[string]bool, error) {
	s.file.mu.Lock()
	defer s.file.mu.Unlock()

	root, err := s.load()
	if err != nil {
		return nil, err
	}

	completed := make(map[string]bool)
	for itemID := range root {
		rec, err := s.decodeRecord(root, itemID)
		if err != nil {
			return nil, err
		}
		for _, name := range rec.completed {
			if name == campaign {
				completed[itemID] = true
				break
			}
		}
	}
	return completed, nil
}

// ApplyTag adds tag to itemID's tags array. Already-present tags are
// left alone.
func (s *JSONStore) ApplyTag(itemID, tag string) error {
	return s.update(itemID, func(rec *record) error {
		for _, existing := range rec.tags {
			if existing == tag {
				return nil
			}
		}
		rec.tags = append(rec.tags, tag)
		return nil
	})
}

// RemoveTag removes tag from itemID's tags array.
func (s *JSONStore) RemoveTag(itemID, tag string) error {
	return s.update(itemID, func(rec *record) error {
		for i, existing := range rec.tags {
			if existing == tag {
				rec.tags = append(rec.tags[:i], rec.tags[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

// MarkComplete adds campaign to itemID's completion set.
func (s *JSONStore) MarkComplete(itemID, campaign string) error {
	return s.update(itemID, func(rec *record) error {
		for _, existing := range rec.completed {
			if existing == campaign {
				return nil
			}
		}
		rec.completed = append(rec.completed, campaign)
		return nil
	})
}

// AppliedTags returns the tags currently recorded for itemID, in applied
// order.
func (s *JSONStore) AppliedTags(itemID string) ([]string, error) {
	s.file.mu.Lock()
	defer s.file.mu.Unlock()

	root, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, err := s.decodeRecord(root, itemID)
	if err != nil {
		return nil, err
	}
	return rec.tags, nil
}

// ToData returns the serialized form of the store.
func (s *JSONStore) ToData() Data {
	return Data{
		Type:     TypeJSON,
		FilePath: s.file.path,
		TagKey:   s.tagKey,
	}
}

// atomicWriteFile writes data to path via a temp file and rename, so a
// crash mid-write never leaves a torn store file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}
