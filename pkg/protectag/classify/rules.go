package classify

import "strings"

// PriorityGroup is a high-volume category checked before anything else. It
// fires only when one of NameAliases resolves to an active category.
type PriorityGroup struct {
	Name        string
	NameAliases []string
	Keywords    []string
}

// FragmentRule maps a category-name fragment to the keywords that select any
// category whose name contains the fragment.
type FragmentRule struct {
	Fragment string
	Keywords []string
}

// HeuristicRule maps keywords to a category by exact (case-insensitive) name.
// Used only when the semantic classifier cannot answer.
type HeuristicRule struct {
	Category string
	Keywords []string
}

// Rules is the versioned keyword table driving the deterministic classifier.
// Every list is ordered; the first match wins.
type Rules struct {
	Version           int
	Priority          []PriorityGroup
	Fragments         []FragmentRule
	GenericTerms      []string
	IgnoredNameTokens []string
	MinNameTokenLen   int
	Heuristic         []HeuristicRule
	HeuristicGeneric  []string
}

// normalized returns a copy with every keyword lower-cased. Leading and
// trailing spaces are kept: " tv" deliberately requires a word boundary.
func (r Rules) normalized() Rules {
	out := Rules{
		Version:           r.Version,
		GenericTerms:      lowerAll(r.GenericTerms),
		IgnoredNameTokens: lowerAll(r.IgnoredNameTokens),
		MinNameTokenLen:   r.MinNameTokenLen,
		HeuristicGeneric:  lowerAll(r.HeuristicGeneric),
	}
	if out.MinNameTokenLen <= 0 {
		out.MinNameTokenLen = 4
	}
	for _, g := range r.Priority {
		out.Priority = append(out.Priority, PriorityGroup{
			Name:        g.Name,
			NameAliases: append([]string(nil), g.NameAliases...),
			Keywords:    lowerAll(g.Keywords),
		})
	}
	for _, f := range r.Fragments {
		out.Fragments = append(out.Fragments, FragmentRule{
			Fragment: strings.ToLower(f.Fragment),
			Keywords: lowerAll(f.Keywords),
		})
	}
	for _, h := range r.Heuristic {
		out.Heuristic = append(out.Heuristic, HeuristicRule{
			Category: h.Category,
			Keywords: lowerAll(h.Keywords),
		})
	}
	return out
}

// ElectronicsTerms is the union of every fragment keyword and the generic
// electronics terms, in table order without duplicates.
func (r Rules) ElectronicsTerms() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(terms []string) {
		for _, t := range terms {
			t = strings.ToLower(t)
			if _, ok := seen[t]; ok || t == "" {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	for _, f := range r.Fragments {
		add(f.Keywords)
	}
	add(r.GenericTerms)
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
