// Package labelstore records, per item, which tags and session
// completions have been applied. Two interchangeable backends exist: one
// moves files into tag-named subdirectories, the other keeps a single
// structured JSON file. The session engine is backend-agnostic beyond the
// Store contract.
package labelstore

import (
	"fmt"

	"github.com/mbaylis/curator/internal/errors"
	"github.com/mbaylis/curator/internal/source"
)

// Store is the durable record of labels. All mutations are idempotent
// with respect to replays: applying a tag that is already present, or
// completing an already-completed item, is not an error.
type Store interface {
	// ListItems returns the ids of every item the store knows about.
	ListItems() ([]string, error)

	// ListCompleted returns the set of item ids completed for campaign.
	ListCompleted(campaign string) (map[string]bool, error)

	// ApplyTag records tag against itemID.
	ApplyTag(itemID, tag string) error

	// RemoveTag removes tag from itemID. Removing an absent tag is a no-op.
	RemoveTag(itemID, tag string) error

	// MarkComplete records that campaign has finished itemID.
	MarkComplete(itemID, campaign string) error

	// AppliedTags returns the tags currently applied to itemID, in the
	// order they were applied.
	AppliedTags(itemID string) ([]string, error)

	// ToData returns a serializable description of the store.
	ToData() Data
}

// Type identifies a store variant.
type Type string

// Store variants. The set is closed; FromData rejects anything else.
const (
	TypeSubdirectory Type = "subdirectory"
	TypeJSON         Type = "json"
)

// AllowedTypes returns the store types legal for a source type. The
// subdirectory backend only makes sense when items are files it can move.
func AllowedTypes(sourceType source.Type) []Type {
	switch sourceType {
	case source.TypeDirectory:
		return []Type{TypeSubdirectory, TypeJSON}
	default:
		return nil
	}
}

// Data is the serialized form of a Store.
type Data struct {
	Type     Type   `json:"type"`
	FilePath string `json:"file_path,omitempty"`
	TagKey   string `json:"tag_key,omitempty"`
}

// FromData reconstructs a Store from its serialized form. The
// subdirectory backend derives its directory from the session's source.
func FromData(data Data, src source.Data) (Store, error) {
	switch data.Type {
	case TypeSubdirectory:
		return NewSubdirStore(src.Directory)
	case TypeJSON:
		return NewJSONStore(data.FilePath, data.TagKey)
	default:
		return nil, fmt.Errorf("label store type %q: %w", data.Type, errors.ErrInvalidInput)
	}
}
