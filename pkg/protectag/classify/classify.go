// Package classify decides protection eligibility and category for a product
// using ordered keyword rules. It performs no I/O.
package classify

import (
	"strings"
	"unicode"

	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/product"
)

// Stage identifies which rule produced a decision.
type Stage int

const (
	StageNotEligible Stage = iota
	StagePriority
	StageAlias
	StageFragment
	StageNameToken
	StageElectronics
)

func (s Stage) String() string {
	switch s {
	case StagePriority:
		return "priority"
	case StageAlias:
		return "alias"
	case StageFragment:
		return "fragment"
	case StageNameToken:
		return "name-token"
	case StageElectronics:
		return "electronics"
	default:
		return "not-eligible"
	}
}

// Decision is the outcome of deterministic classification.
// CategoryID != nil implies Eligible.
type Decision struct {
	CategoryID *int64
	Eligible   bool
	Confident  bool
	Stage      Stage
}

// NeedsFallback reports whether the product is electronic but unclassified,
// the only state that escalates to the semantic classifier.
func (d Decision) NeedsFallback() bool {
	return d.Eligible && !d.Confident
}

// Classifier applies a rule table to products.
type Classifier struct {
	rules       Rules
	electronics []string
	ignored     map[string]struct{}
}

// New creates a classifier for the given rules.
func New(rules Rules) *Classifier {
	r := rules.normalized()
	ignored := make(map[string]struct{}, len(r.IgnoredNameTokens))
	for _, t := range r.IgnoredNameTokens {
		ignored[t] = struct{}{}
	}
	return &Classifier{
		rules:       r,
		electronics: r.ElectronicsTerms(),
		ignored:     ignored,
	}
}

// Rules returns the normalized rule table in use.
func (c *Classifier) Rules() Rules { return c.rules }

// Classify runs the precedence chain: priority groups, aliases, fragment
// table, category-name tokens, electronics indicator.
func (c *Classifier) Classify(p product.Product, reg *category.Registry) Decision {
	text := p.SearchText()

	for _, g := range c.rules.Priority {
		cat, ok := reg.FindByNormalizedName(g.NameAliases...)
		if !ok {
			continue
		}
		if containsAny(text, g.Keywords) {
			return confident(cat.ID, StagePriority)
		}
	}

	specific := reg.Specific()

	for _, cat := range specific {
		for _, alias := range cat.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias != "" && strings.Contains(text, alias) {
				return confident(cat.ID, StageAlias)
			}
		}
	}

	for _, cat := range specific {
		name := strings.ToLower(cat.Name)
		for _, f := range c.rules.Fragments {
			if f.Fragment == "" || !strings.Contains(name, f.Fragment) {
				continue
			}
			if containsAny(text, f.Keywords) {
				return confident(cat.ID, StageFragment)
			}
		}
	}

	for _, cat := range specific {
		if containsAny(text, c.NameTokens(cat.Name)) {
			return confident(cat.ID, StageNameToken)
		}
	}

	if containsAny(text, c.electronics) {
		return Decision{Eligible: true, Stage: StageElectronics}
	}
	return Decision{Stage: StageNotEligible}
}

// NameTokens derives the meaningful words of a category name: lower-cased,
// longer than the minimum length and not in the ignored list.
func (c *Classifier) NameTokens(name string) []string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	var tokens []string
	for _, w := range words {
		w = strings.Trim(w, "-")
		if len([]rune(w)) < c.rules.MinNameTokenLen {
			continue
		}
		if _, skip := c.ignored[w]; skip {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// Heuristic is the degrade path used when the semantic classifier is
// unavailable: ordered keyword groups resolved by category name, then generic
// electronics terms resolve to the general category. Returns nil when nothing
// matched.
func (c *Classifier) Heuristic(p product.Product, reg *category.Registry) *int64 {
	text := p.SearchText()
	for _, h := range c.rules.Heuristic {
		if !containsAny(text, h.Keywords) {
			continue
		}
		if cat, ok := reg.FindByName(h.Category); ok {
			id := cat.ID
			return &id
		}
	}
	if containsAny(text, c.rules.HeuristicGeneric) {
		return reg.GeneralID()
	}
	return nil
}

func confident(id int64, stage Stage) Decision {
	return Decision{CategoryID: &id, Eligible: true, Confident: true, Stage: stage}
}
