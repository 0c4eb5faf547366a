package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/protectag/pkg/protectag/internalerr"
)

// Seed describes the reference data loaded into a store by `protectag seed`.
type Seed struct {
	Categories []SeedCategory `yaml:"categories"`
	Shops      []SeedShop     `yaml:"shops"`
}

// SeedCategory is a protection category with its aliases
type SeedCategory struct {
	ID      int64    `yaml:"id"`
	Name    string   `yaml:"name"`
	Insurer string   `yaml:"insurer"`
	Active  *bool    `yaml:"active"`
	Aliases []string `yaml:"aliases"`
}

// IsActive defaults to true when the flag is omitted.
func (c SeedCategory) IsActive() bool {
	return c.Active == nil || *c.Active
}

// SeedShop is a merchant with credentials and optional prompt settings
type SeedShop struct {
	Domain            string `yaml:"domain"`
	AccessToken       string `yaml:"access_token"`
	APIKey            string `yaml:"api_key"`
	PromptIntro       string `yaml:"prompt_intro"`
	GeneralCategoryID *int64 `yaml:"general_category_id"`
}

// LoadSeed loads a seed file from YAML
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, err
	}
	if err := seed.Validate(); err != nil {
		return nil, errors.Wrapf(err, "seed %s", path)
	}
	return &seed, nil
}

// Validate checks ids and names are present and unique.
func (s *Seed) Validate() error {
	ids := make(map[int64]struct{}, len(s.Categories))
	for i, c := range s.Categories {
		if c.ID <= 0 {
			return errors.Wrapf(internalerr.ErrInvalidConfig, "category %d: id must be positive", i)
		}
		if strings.TrimSpace(c.Name) == "" {
			return errors.Wrapf(internalerr.ErrInvalidConfig, "category %d: name required", c.ID)
		}
		if _, dup := ids[c.ID]; dup {
			return errors.Wrapf(internalerr.ErrDuplicate, "category id %d", c.ID)
		}
		ids[c.ID] = struct{}{}
	}

	domains := make(map[string]struct{}, len(s.Shops))
	for i, sh := range s.Shops {
		d := strings.ToLower(strings.TrimSpace(sh.Domain))
		if d == "" {
			return errors.Wrapf(internalerr.ErrInvalidConfig, "shop %d: domain required", i)
		}
		if _, dup := domains[d]; dup {
			return errors.Wrapf(internalerr.ErrDuplicate, "shop %s", d)
		}
		domains[d] = struct{}{}
		if sh.GeneralCategoryID != nil {
			if _, ok := ids[*sh.GeneralCategoryID]; !ok {
				return errors.Wrapf(internalerr.ErrInvalidConfig,
					"shop %s: general_category_id %d is not a seeded category", d, *sh.GeneralCategoryID)
			}
		}
	}
	return nil
}
