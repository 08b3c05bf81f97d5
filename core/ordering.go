package core

import (
	"sort"
	"strings"
)

// OrderBy is one field of an `ordering` query: `title` ascending, `-title` descending.
type OrderBy struct {
	Field     string
	Ascending bool
}

// ParseOrdering parses a comma separated ordering query.
func ParseOrdering(raw string) []OrderBy {
	out := make([]OrderBy, 0)
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		out = append(out, OrderBy{Field: field, Ascending: !descending})
	}
	return out
}

// SortRows stably sorts n rows by orderings. value returns the comparable string of a row field and
// whether the field is known; unknown fields are ignored.
func SortRows(n int, swap func(i, j int), value func(i int, field string) (string, bool), orderings []OrderBy) {
	if len(orderings) == 0 {
		return
	}
	sort.Stable(rowSorter{n: n, swap: swap, value: value, orderings: orderings})
}

type rowSorter struct {
	n         int
	swap      func(i, j int)
	value     func(i int, field string) (string, bool)
	orderings []OrderBy
}

func (s rowSorter) Len() int      { return s.n }
func (s rowSorter) Swap(i, j int) { s.swap(i, j) }

func (s rowSorter) Less(i, j int) bool {
	for _, o := range s.orderings {
		a, ok := s.value(i, o.Field)
		if !ok {
			continue
		}
		b, _ := s.value(j, o.Field)
		if a == b {
			continue
		}
		if o.Ascending {
			return a < b
		}
		return a > b
	}
	return false
}
