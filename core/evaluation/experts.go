package evaluation

import (
	"strings"
	"unicode"

	"github.com/mdii/portal/core/survey"
)

// DomainLabels maps the domain codes of the expert intake forms to display labels.
var DomainLabels = map[string]string{
	"ag":   "Agronomy",
	"ce":   "Country Expert",
	"ds":   "Data Science",
	"econ": "Economics",
	"env":  "Environment and Climate",
	"gesi": "Gender Equality and Social Inclusion",
	"hcd":  "Human-Centered Design",
	"ict":  "Information and Communication Technologies",
	"ls":   "Livestock",
	"nut":  "Nutrition",
	"pol":  "Policy",
	"ux":   "User Experience",
}

// Expert is a domain expert folded across both intake forms.
type Expert struct {
	Name         string   `json:"name"`
	Organization string   `json:"organization"`
	Domains      []string `json:"domains"`
	ToolIDs      []string `json:"toolIds"`
}

func isDomainSep(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}

// ParseDomains splits a free-text domain answer on commas and whitespace and maps every code
// (case-insensitively) to its label. Unknown codes are kept as typed. Duplicates are dropped.
func ParseDomains(raw string) []string {
	out := make([]string, 0)
	seen := make(map[string]bool)
	for _, code := range strings.FieldsFunc(raw, isDomainSep) {
		label, ok := DomainLabels[strings.ToLower(code)]
		if !ok {
			label = code
		}
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}

func expertKey(name, org string) string {
	return name + "‖" + org
}

func appendUnique(dst []string, seen map[string]bool, vals ...string) []string {
	for _, v := range vals {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		dst = append(dst, v)
	}
	return dst
}

// AggregateExperts folds the advanced and early stage intake submissions into one entry per
// name+organization, taking the union of their domains and tool ids. Experts keep the order
// in which they first appear (advanced first).
func AggregateExperts(advanced, early []survey.Submission) []Expert {
	subs := append(survey.NormalizeExperts(advanced, survey.MaturityAdvanced), survey.NormalizeExperts(early, survey.MaturityEarly)...)

	type entry struct {
		expert      Expert
		seenDomains map[string]bool
		seenTools   map[string]bool
	}
	order := make([]string, 0)
	byKey := make(map[string]*entry)

	for _, s := range subs {
		key := expertKey(s.Name, s.Organization)
		e, ok := byKey[key]
		if !ok {
			e = &entry{
				expert:      Expert{Name: s.Name, Organization: s.Organization, Domains: []string{}, ToolIDs: []string{}},
				seenDomains: make(map[string]bool),
				seenTools:   make(map[string]bool),
			}
			byKey[key] = e
			order = append(order, key)
		}
		e.expert.Domains = appendUnique(e.expert.Domains, e.seenDomains, ParseDomains(s.Domains)...)
		e.expert.ToolIDs = appendUnique(e.expert.ToolIDs, e.seenTools, s.ToolID)
	}

	out := make([]Expert, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key].expert)
	}
	return out
}
