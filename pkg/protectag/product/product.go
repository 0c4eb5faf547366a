// Package product defines the catalog snapshot the engine classifies.
package product

import "strings"

// Product is a transient snapshot of one catalog item.
type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Vendor      string   `json:"vendor"`
	ProductType string   `json:"productType"`
	Tags        []string `json:"tags"`
}

// SearchText is the lower-cased concatenation of every free-text field the
// classifiers match against.
func (p Product) SearchText() string {
	parts := []string{p.Title, p.Description, p.Vendor, p.ProductType, strings.Join(p.Tags, " ")}
	return strings.ToLower(strings.Join(parts, " "))
}

// HasTag reports whether the product carries tag exactly.
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
