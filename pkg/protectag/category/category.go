// Package category holds the read-only snapshot of active protection
// categories used for one batch run.
package category

import (
	"strings"
	"unicode"
)

// GeneralName is the conventional name of the catch-all category, used when
// a shop has not configured a general category explicitly.
const GeneralName = "consumer electronics"

// Category is an active protection category.
type Category struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Registry is an immutable snapshot of the active categories.
type Registry struct {
	categories []Category
	byID       map[int64]int
	generalID  *int64
}

// NewRegistry copies categories into a new snapshot. generalID is the shop's
// configured catch-all category; nil or zero falls back to the category named
// "Consumer Electronics", if any.
func NewRegistry(categories []Category, generalID *int64) *Registry {
	r := &Registry{
		categories: make([]Category, len(categories)),
		byID:       make(map[int64]int, len(categories)),
	}
	for i, c := range categories {
		c.Aliases = append([]string(nil), c.Aliases...)
		r.categories[i] = c
		r.byID[c.ID] = i
	}

	if generalID != nil && *generalID != 0 {
		id := *generalID
		r.generalID = &id
	} else if c, ok := r.FindByName(GeneralName); ok {
		id := c.ID
		r.generalID = &id
	}
	return r
}

// All returns the categories in snapshot order.
func (r *Registry) All() []Category {
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Len returns the number of categories.
func (r *Registry) Len() int { return len(r.categories) }

// GeneralID returns the catch-all category id, or nil when none is configured.
func (r *Registry) GeneralID() *int64 {
	if r.generalID == nil {
		return nil
	}
	id := *r.generalID
	return &id
}

// IsGeneral reports whether id is the catch-all category.
func (r *Registry) IsGeneral(id int64) bool {
	return r.generalID != nil && *r.generalID == id
}

// Specific returns every category except the catch-all, in snapshot order.
func (r *Registry) Specific() []Category {
	out := make([]Category, 0, len(r.categories))
	for _, c := range r.categories {
		if r.IsGeneral(c.ID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Get returns the category with the given id.
func (r *Registry) Get(id int64) (Category, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Category{}, false
	}
	return r.categories[i], true
}

// Contains reports whether id is an active category.
func (r *Registry) Contains(id int64) bool {
	_, ok := r.byID[id]
	return ok
}

// FindByName performs a case-insensitive exact name lookup.
func (r *Registry) FindByName(name string) (Category, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range r.categories {
		if strings.ToLower(strings.TrimSpace(c.Name)) == want {
			return c, true
		}
	}
	return Category{}, false
}

// FindByNormalizedName returns the first category whose normalized name
// equals the normalized form of one of the aliases, tried in order.
func (r *Registry) FindByNormalizedName(aliases ...string) (Category, bool) {
	for _, a := range aliases {
		want := Normalize(a)
		if want == "" {
			continue
		}
		for _, c := range r.categories {
			if Normalize(c.Name) == want {
				return c, true
			}
		}
	}
	return Category{}, false
}

// Normalize lower-cases s and drops everything that is not a letter or digit,
// so "Desktops, Laptops" and "desktopslaptops" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
