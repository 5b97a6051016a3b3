// Package source enumerates candidate items for a labeling session and
// assigns each a stable identity. Items are immutable once enumerated;
// labels for them are recorded elsewhere.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mbaylis/curator/internal/errors"
)

// Kind classifies how an item's payload should be rendered.
type Kind int

const (
	// KindText is textual content, posted inline.
	KindText Kind = iota
	// KindImage is an image file, posted as a picture.
	KindImage
	// KindDocument is any other file, posted as a generic document.
	KindDocument
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Item is one unit of content to be labeled. ID is stable across process
// restarts; for file-backed sources it is the file's base name.
type Item struct {
	ID   string
	Kind Kind
	Path string
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

// FromFile builds an Item for path, choosing the payload kind from the
// file extension.
func FromFile(path string) Item {
	ext := strings.ToLower(filepath.Ext(path))
	kind := KindDocument
	switch {
	case imageExtensions[ext]:
		kind = KindImage
	case textExtensions[ext]:
		kind = KindText
	}
	return Item{
		ID:   filepath.Base(path),
		Kind: kind,
		Path: path,
	}
}

// Type identifies a source variant.
type Type string

// Source variants. The set is closed; FromData rejects anything else.
const (
	TypeDirectory Type = "directory"
)

// Types returns every source type in display order.
func Types() []Type {
	return []Type{TypeDirectory}
}

// Source enumerates items from a backing location.
type Source interface {
	// ListItems returns all currently present items, in stable order.
	ListItems() ([]Item, error)

	// Directory returns the backing directory of the source.
	Directory() string

	// ToData returns a serializable description of the source.
	ToData() Data
}

// Data is the serialized form of a Source.
type Data struct {
	Type      Type   `json:"type"`
	Directory string `json:"directory,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

// FromData reconstructs a Source from its serialized form.
func FromData(data Data) (Source, error) {
	switch data.Type {
	case TypeDirectory:
		return NewDirectorySource(data.Directory, data.Pattern)
	default:
		return nil, fmt.Errorf("source type %q: %w", data.Type, errors.ErrInvalidInput)
	}
}

// DirectorySource enumerates the files of a single directory. Files in
// subdirectories are not items; the subdirectory label store uses them
// for completed items.
type DirectorySource struct {
	dir     string
	pattern string
	matcher glob.Glob
}

// NewDirectorySource creates a source over dir. pattern optionally
// restricts enumeration to matching file names (glob syntax, e.g.
// "*.png"); empty means every file.
func NewDirectorySource(dir, pattern string) (*DirectorySource, error) {
	if dir == "" {
		return nil, fmt.Errorf("source directory is required: %w", errors.ErrInvalidInput)
	}
	s := &DirectorySource{dir: dir, pattern: pattern}
	if pattern != "" {
		matcher, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid item pattern %q: %w", pattern, err)
		}
		s.matcher = matcher
	}
	return s, nil
}

// ListItems returns the directory's files as items, sorted by name.
func (s *DirectorySource) ListItems() ([]Item, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	var items []Item
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if s.matcher != nil && !s.matcher.Match(entry.Name()) {
			continue
		}
		items = append(items, FromFile(filepath.Join(s.dir, entry.Name())))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Directory returns the backing directory.
func (s *DirectorySource) Directory() string {
	return s.dir
}

// ToData returns the serialized form of the source.
func (s *DirectorySource) ToData() Data {
	return Data{
		Type:      TypeDirectory,
		Directory: s.dir,
		Pattern:   s.pattern,
	}
}

// ListDirectories returns the candidate input directories under base,
// sorted by name. The base directory is created if missing so a fresh
// install renders an empty (not failing) wizard step.
func ListDirectories(base string) ([]string, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create input directory: %w", err)
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(base, entry.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
