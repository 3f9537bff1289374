// Package filter builds engine facet filter clauses from caller refinement
// state.
//
// The engine AND-combines every facet filter clause of a query. OR semantics
// for a facet ("disjunctive" facets) are achieved by emitting all of its
// selected values as one group clause, which the engine ORs internally.
package filter

import (
	"slices"
	"sort"
)

// Refinements maps a facet name to the values currently selected for it.
// Value order within a facet is preserved; facets themselves are unordered.
type Refinements map[string][]string

// Clause is one facet filter clause: either a single "name:value" atom
// (Values has length 1 and Group is false) or an OR-group of atoms.
type Clause struct {
	Values []string
	Group  bool
}

// Filters is an ordered clause list. All clauses are AND-combined by the
// engine; a Group clause is OR-combined internally.
type Filters []Clause

// Encode returns the wire representation: atoms as bare strings, groups as
// string arrays. The result marshals directly into the facetFilters query
// parameter.
func (f Filters) Encode() []any {
	out := make([]any, 0, len(f))
	for _, c := range f {
		if c.Group {
			out = append(out, append([]string(nil), c.Values...))
			continue
		}
		out = append(out, c.Values[0])
	}
	return out
}

// Build assembles the facet filter clauses for one sub-query of a disjunctive
// search. Facets listed in disjunctive emit one OR-group over all of their
// refined values; every other refined facet emits one standalone atom per
// value. The excluded facet (when disjunctive) is skipped entirely so that its
// own selection does not constrain its value counts. Facet names are emitted
// in sorted order so the serialized query is deterministic.
func Build(disjunctive []string, refinements Refinements, excluded string) Filters {
	names := make([]string, 0, len(refinements))
	for name := range refinements {
		names = append(names, name)
	}
	sort.Strings(names)

	var out Filters
	for _, name := range names {
		values := refinements[name]
		if len(values) == 0 {
			continue
		}
		if slices.Contains(disjunctive, name) {
			if name == excluded {
				continue
			}
			group := make([]string, 0, len(values))
			for _, v := range values {
				group = append(group, name+":"+v)
			}
			out = append(out, Clause{Values: group, Group: true})
			continue
		}
		for _, v := range values {
			out = append(out, Clause{Values: []string{name + ":" + v}})
		}
	}
	return out
}
