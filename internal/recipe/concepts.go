package recipe

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ConceptSet is the set of accepted concept names. Names are unique
// (case-insensitive) and keep the order in which they were first seen.
type ConceptSet []string

// NewConceptSet builds a set from names, dropping blanks and duplicates.
func NewConceptSet(names ...string) ConceptSet {
	seen := make(map[string]struct{}, len(names))
	set := make(ConceptSet, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		set = append(set, name)
	}
	return set
}

// Empty reports whether no concept was accepted.
func (s ConceptSet) Empty() bool {
	return len(s) == 0
}

// Contains reports whether name is in the set.
func (s ConceptSet) Contains(name string) bool {
	for _, n := range s {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// Query joins the names into the comma separated form used by the recipe
// search.
func (s ConceptSet) Query() string {
	return strings.Join(s, ",")
}

// DisplayName title-cases a concept name for presentation.
func DisplayName(name string) string {
	// A Caser keeps state, so one is built per call.
	return cases.Title(language.English).String(strings.TrimSpace(name))
}
