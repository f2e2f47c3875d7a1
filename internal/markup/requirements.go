package markup

import (
	"errors"
	"net/url"
	"slices"
)

// ErrEmptyRequirement is returned by Add for an empty identifier.
var ErrEmptyRequirement = errors.New("requirement identifier cannot be empty")

// RequirementSet accumulates the requirement identifiers written into
// Requirements cells during one merge. A new set is created for every merge.
type RequirementSet struct {
	ids  []string
	seen map[string]bool
}

// NewRequirementSet returns an empty set.
func NewRequirementSet() *RequirementSet {
	return &RequirementSet{seen: make(map[string]bool)}
}

// Add records id and returns the placeholder to store in the cell. The id
// is path-escaped inside the placeholder, so it may hold any text.
func (s *RequirementSet) Add(id string) (string, error) {
	if id == "" {
		return "", ErrEmptyRequirement
	}
	if !s.seen[id] {
		s.seen[id] = true
		s.ids = append(s.ids, id)
	}
	return "///req:" + url.PathEscape(id) + "///", nil
}

// lookup returns the identifier held by the escaped text of a placeholder
// when it was recorded.
func (s *RequirementSet) lookup(escaped string) (string, bool) {
	id, err := url.PathUnescape(escaped)
	if err != nil || !s.Has(id) {
		return "", false
	}
	return id, true
}

// Has reports whether id was recorded.
func (s *RequirementSet) Has(id string) bool {
	return s != nil && s.seen[id]
}

// IDs returns the recorded identifiers in insertion order.
func (s *RequirementSet) IDs() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.ids)
}

// Len returns the number of recorded identifiers.
func (s *RequirementSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}
