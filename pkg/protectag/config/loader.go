package config

import (
	"github.com/cockroachdb/errors"

	"github.com/cognicore/protectag/pkg/protectag/classify"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	RulesPath string
	SeedPath  string
}

// Components holds all loaded configuration components
type Components struct {
	Rules      classify.Rules
	Classifier *classify.Classifier
	Seed       *Seed
}

// Load reads all configuration files and returns initialized components.
// An empty RulesPath selects the embedded default table.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	if l.RulesPath != "" {
		rules, err := LoadRules(l.RulesPath)
		if err != nil {
			return nil, errors.Wrap(err, "load rules")
		}
		comp.Rules = rules
	} else {
		comp.Rules = DefaultRules()
	}
	comp.Classifier = classify.New(comp.Rules)

	if l.SeedPath != "" {
		seed, err := LoadSeed(l.SeedPath)
		if err != nil {
			return nil, errors.Wrap(err, "load seed")
		}
		comp.Seed = seed
	}

	return comp, nil
}
