package ident

import (
	"fmt"

	"github.com/mbaylis/curator/internal/errors"
)

// OptionSet is the append-only bijection between option ids and option
// text. Option ids are positions in the insertion-ordered list and are
// never renumbered, so callback payloads issued before an option was
// added remain valid afterwards.
type OptionSet struct {
	texts []string
	idFor map[string]int
}

// NewOptionSet creates an OptionSet pre-loaded with texts in display order.
// Duplicate texts collapse onto the first occurrence.
func NewOptionSet(texts []string) *OptionSet {
	s := &OptionSet{idFor: make(map[string]int)}
	for _, text := range texts {
		s.Add(text)
	}
	return s
}

// Add returns the id for text, allocating the next id if text is new.
func (s *OptionSet) Add(text string) int {
	if id, ok := s.idFor[text]; ok {
		return id
	}
	id := len(s.texts)
	s.texts = append(s.texts, text)
	s.idFor[text] = id
	return id
}

// Text returns the option text behind id.
func (s *OptionSet) Text(id int) (string, error) {
	if id < 0 || id >= len(s.texts) {
		return "", fmt.Errorf("option %d: %w", id, errors.ErrUnknownOption)
	}
	return s.texts[id], nil
}

// ID returns the id assigned to text.
func (s *OptionSet) ID(text string) (int, error) {
	id, ok := s.idFor[text]
	if !ok {
		return 0, fmt.Errorf("option %q: %w", text, errors.ErrUnknownOption)
	}
	return id, nil
}

// Texts returns all option texts in insertion order. The returned slice
// is a copy.
func (s *OptionSet) Texts() []string {
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

// Len returns the number of options.
func (s *OptionSet) Len() int {
	return len(s.texts)
}
