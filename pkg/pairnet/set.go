package pairnet

import "sort"

// DrugSet is a set of drug identifiers
type DrugSet map[string]struct{}

// NewDrugSet creates a set holding ids
func NewDrugSet(ids ...string) DrugSet {
	s := make(DrugSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id
func (s DrugSet) Add(id string) {
	s[id] = struct{}{}
}

// Has reports whether id is a member
func (s DrugSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of members
func (s DrugSet) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order
func (s DrugSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Intersect returns the members present in both s and other
func (s DrugSet) Intersect(other DrugSet) DrugSet {
	out := make(DrugSet)
	for id := range s {
		if other.Has(id) {
			out.Add(id)
		}
	}
	return out
}
