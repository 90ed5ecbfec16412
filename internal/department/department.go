// Package department defines the closed classification domain for queries.
//
// A Department is a label from a small, externally configured enumeration
// (for example HR, IT, Security) plus the synthetic General fallback. The
// enumeration, each department's keyword lexicon, and its canonical
// description are static configuration inputs: they are loaded once at
// startup and never mutated afterwards.
package department

import (
	"fmt"
	"strings"
)

// General is the synthetic fallback department. Queries that cannot be
// confidently attributed to a configured department are routed here, and
// retrieval for General is never scoped by a department filter.
const General Department = "General Inquiry"

// Department is a classification label for a query's subject domain.
type Department string

// String returns the department label.
func (d Department) String() string { return string(d) }

// IsGeneral reports whether d is the General fallback.
// The comparison is case-insensitive to tolerate labels coming back from
// external stores with different casing.
func (d Department) IsGeneral() bool {
	return strings.EqualFold(string(d), string(General))
}

// Profile holds the static routing inputs for one configured department.
type Profile struct {
	// Name is the department label (e.g., "HR").
	Name Department

	// Description is the canonical prose description embedded once and
	// compared against query embeddings during semantic routing.
	Description string

	// Keywords is the department's lexicon. Entries may be single words
	// ("payroll") or multi-word n-grams ("sick leave"); matching rules
	// differ between the two (see internal/router).
	Keywords []string
}

// Set is the immutable collection of configured departments.
// The zero value is not useful; construct with NewSet.
type Set struct {
	profiles []Profile
	byName   map[Department]*Profile
}

// NewSet builds a Set from the configured profiles.
// Profile names must be non-empty and unique; General must not be configured
// as a regular department (it is always implicitly present as the fallback).
func NewSet(profiles []Profile) (*Set, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no departments configured")
	}

	s := &Set{
		profiles: make([]Profile, len(profiles)),
		byName:   make(map[Department]*Profile, len(profiles)),
	}
	copy(s.profiles, profiles)

	for i := range s.profiles {
		p := &s.profiles[i]
		if p.Name == "" {
			return nil, fmt.Errorf("department %d has empty name", i)
		}
		if p.Name.IsGeneral() {
			return nil, fmt.Errorf("department %q shadows the General fallback", p.Name)
		}
		if _, dup := s.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate department %q", p.Name)
		}
		s.byName[p.Name] = p
	}

	return s, nil
}

// Profiles returns the configured departments in declaration order.
// The returned slice must not be modified.
func (s *Set) Profiles() []Profile { return s.profiles }

// Lookup returns the profile for the given department name, matching
// case-insensitively. The General fallback has no profile.
func (s *Set) Lookup(name Department) (*Profile, bool) {
	if p, ok := s.byName[name]; ok {
		return p, true
	}
	for i := range s.profiles {
		if strings.EqualFold(string(s.profiles[i].Name), string(name)) {
			return &s.profiles[i], true
		}
	}
	return nil, false
}

// Names returns all configured department labels in declaration order,
// excluding General.
func (s *Set) Names() []Department {
	names := make([]Department, len(s.profiles))
	for i := range s.profiles {
		names[i] = s.profiles[i].Name
	}
	return names
}

// Len returns the number of configured departments (excluding General).
func (s *Set) Len() int { return len(s.profiles) }
