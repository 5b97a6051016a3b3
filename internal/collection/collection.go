// Package collection provides the keyed persistence used for the session
// and draft collections: a plain list/upsert/remove surface over records
// with small integer ids. Two backends exist, a JSON-file-per-record
// store and an embedded SQLite store.
package collection

// Record is anything storable in a collection.
type Record interface {
	// RecordID returns the record's id within its collection.
	RecordID() int
}

// Store persists one collection of records.
type Store[T Record] interface {
	// List returns every record in the collection, ordered by id.
	List() ([]T, error)

	// Upsert inserts or replaces the record with the same id.
	Upsert(record T) error

	// Remove deletes the record with the given id. Removing an absent id
	// is a no-op.
	Remove(id int) error
}

// NextFreeID returns the lowest positive integer not used by any record.
// Campaign ids are not referenced by outstanding messages, so unlike
// interaction tokens they may be reused after deletion.
func NextFreeID[T Record](records []T) int {
	used := make(map[int]bool, len(records))
	for _, record := range records {
		used[record.RecordID()] = true
	}
	id := 1
	for used[id] {
		id++
	}
	return id
}
