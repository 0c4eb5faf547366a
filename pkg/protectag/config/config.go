package config

import (
	_ "embed"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/protectag/pkg/protectag/classify"
	"github.com/cognicore/protectag/pkg/protectag/internalerr"
)

// SupportedRulesVersion is the rule table schema this build understands.
const SupportedRulesVersion = 1

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// RuleTable represents the classifier rule configuration
type RuleTable struct {
	Version           int             `yaml:"version"`
	Priority          []PriorityEntry `yaml:"priority"`
	Fragments         []FragmentEntry `yaml:"fragments"`
	GenericTerms      []string        `yaml:"generic_terms"`
	IgnoredNameTokens []string        `yaml:"ignored_name_tokens"`
	MinNameTokenLen   int             `yaml:"min_name_token_len"`
	Heuristic         []HeuristicItem `yaml:"heuristic"`
	HeuristicGeneric  []string        `yaml:"heuristic_generic"`
}

// PriorityEntry is one high-precedence category group
type PriorityEntry struct {
	Name        string   `yaml:"name"`
	NameAliases []string `yaml:"name_aliases"`
	Keywords    []string `yaml:"keywords"`
}

// FragmentEntry maps a category-name fragment to keywords
type FragmentEntry struct {
	Fragment string   `yaml:"fragment"`
	Keywords []string `yaml:"keywords"`
}

// HeuristicItem maps keywords to a category name
type HeuristicItem struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() classify.Rules {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(errors.Wrap(err, "embedded default rules"))
	}
	return rules
}

// LoadRules loads a rule table from a YAML file
func LoadRules(path string) (classify.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return classify.Rules{}, err
	}
	rules, err := ParseRules(data)
	if err != nil {
		return classify.Rules{}, errors.Wrapf(err, "rules %s", path)
	}
	return rules, nil
}

// ParseRules decodes and validates a YAML rule table.
func ParseRules(data []byte) (classify.Rules, error) {
	var table RuleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return classify.Rules{}, err
	}
	if table.Version != SupportedRulesVersion {
		return classify.Rules{}, errors.Wrapf(internalerr.ErrInvalidConfig,
			"unsupported rules version %d (want %d)", table.Version, SupportedRulesVersion)
	}
	for i, f := range table.Fragments {
		if f.Fragment == "" {
			return classify.Rules{}, errors.Wrapf(internalerr.ErrInvalidConfig, "fragment %d has no name", i)
		}
	}
	for i, p := range table.Priority {
		if len(p.NameAliases) == 0 {
			return classify.Rules{}, errors.Wrapf(internalerr.ErrInvalidConfig, "priority group %d (%s) has no name aliases", i, p.Name)
		}
	}
	return table.toRules(), nil
}

func (t RuleTable) toRules() classify.Rules {
	rules := classify.Rules{
		Version:           t.Version,
		GenericTerms:      t.GenericTerms,
		IgnoredNameTokens: t.IgnoredNameTokens,
		MinNameTokenLen:   t.MinNameTokenLen,
		HeuristicGeneric:  t.HeuristicGeneric,
	}
	for _, p := range t.Priority {
		rules.Priority = append(rules.Priority, classify.PriorityGroup{
			Name:        p.Name,
			NameAliases: p.NameAliases,
			Keywords:    p.Keywords,
		})
	}
	for _, f := range t.Fragments {
		rules.Fragments = append(rules.Fragments, classify.FragmentRule{
			Fragment: f.Fragment,
			Keywords: f.Keywords,
		})
	}
	for _, h := range t.Heuristic {
		rules.Heuristic = append(rules.Heuristic, classify.HeuristicRule{
			Category: h.Category,
			Keywords: h.Keywords,
		})
	}
	return rules
}
