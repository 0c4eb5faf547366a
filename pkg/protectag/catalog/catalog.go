// Package catalog walks a merchant catalog page by page and yields the
// products a batch run should consider.
package catalog

import (
	"context"
	"iter"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/protectag/pkg/protectag/product"
)

const (
	// DefaultPageSize is the evaluate page size.
	DefaultPageSize = 50
	// ClearPageSize is the clear-markers page size.
	ClearPageSize = 100
	// DefaultHardCap bounds the candidates of one evaluate run.
	DefaultHardCap = 2000
	// DefaultProtectionVendor is the vendor of the protection product line.
	DefaultProtectionVendor = "Protection"
)

// PageRequest asks for one page of products matching Query.
type PageRequest struct {
	First int
	After string
	Query string
}

// Page is one page of results.
type Page struct {
	Products    []product.Product
	HasNextPage bool
	EndCursor   string
}

// Source is a paged product query.
type Source interface {
	ProductPage(ctx context.Context, req PageRequest) (Page, error)
}

// Exclusions describe the products a run never considers.
type Exclusions struct {
	// Vendor is the protection product line; matched case-insensitively.
	Vendor string
	// Tags skips any product carrying one of them.
	Tags []string
}

// Query renders the exclusions as a catalog search expression, for example
// -vendor:"Protection" AND -tag:protection_on AND -tag:protection_off.
func (e Exclusions) Query() string {
	var parts []string
	if e.Vendor != "" {
		parts = append(parts, `-vendor:"`+strings.ReplaceAll(e.Vendor, `"`, `\"`)+`"`)
	}
	for _, t := range e.Tags {
		parts = append(parts, "-tag:"+t)
	}
	return strings.Join(parts, " AND ")
}

// Excludes applies the same rules locally.
func (e Exclusions) Excludes(p product.Product) bool {
	if e.Vendor != "" && strings.EqualFold(strings.TrimSpace(p.Vendor), e.Vendor) {
		return true
	}
	for _, t := range e.Tags {
		if p.HasTag(t) {
			return true
		}
	}
	return false
}

// Paginator yields candidates from a Source.
type Paginator struct {
	Source     Source
	PageSize   int // 0 = DefaultPageSize
	HardCap    int // 0 = unbounded
	Exclusions Exclusions
	Filter     *Filter // optional; a true result excludes the product
}

// Candidates returns a lazy, single-use sequence of products. Paging stops
// when the source has no further pages or HardCap candidates were yielded.
// An upstream error is yielded once and ends the sequence.
func (p *Paginator) Candidates(ctx context.Context) iter.Seq2[product.Product, error] {
	return func(yield func(product.Product, error) bool) {
		size := p.PageSize
		if size <= 0 {
			size = DefaultPageSize
		}
		query := p.Exclusions.Query()
		cursor := ""
		count := 0

		for {
			if err := ctx.Err(); err != nil {
				yield(product.Product{}, err)
				return
			}
			page, err := p.Source.ProductPage(ctx, PageRequest{First: size, After: cursor, Query: query})
			if err != nil {
				yield(product.Product{}, errors.Wrap(err, "fetch catalog page"))
				return
			}

			for _, prod := range page.Products {
				if p.Exclusions.Excludes(prod) {
					continue
				}
				if p.Filter != nil {
					drop, err := p.Filter.Excludes(prod)
					if err != nil {
						yield(product.Product{}, err)
						return
					}
					if drop {
						continue
					}
				}
				if !yield(prod, nil) {
					return
				}
				count++
				if p.HardCap > 0 && count >= p.HardCap {
					return
				}
			}

			if !page.HasNextPage || page.EndCursor == "" {
				return
			}
			cursor = page.EndCursor
		}
	}
}

// Collect drains Candidates into a slice.
func (p *Paginator) Collect(ctx context.Context) ([]product.Product, error) {
	var out []product.Product
	for prod, err := range p.Candidates(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, prod)
	}
	return out, nil
}
