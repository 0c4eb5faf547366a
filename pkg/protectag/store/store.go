package store

import (
	"context"
	"strings"

	"github.com/cognicore/protectag/pkg/protectag/category"
)

// Store holds shop credentials, the protection categories and per-shop
// evaluation prompt settings. The engine only reads; upserts are used by
// seeding.
type Store interface {
	Close() error

	// Shops
	ShopByDomain(ctx context.Context, domain string) (Shop, bool, error)
	UpsertShop(ctx context.Context, sh Shop) (Shop, error)

	// Categories
	ActiveCategories(ctx context.Context) ([]category.Category, error)
	UpsertCategory(ctx context.Context, c CategoryRecord) error

	// Prompt settings
	PromptSettings(ctx context.Context, shopID int64) (PromptSettings, error)
	UpsertPromptSettings(ctx context.Context, ps PromptSettings) error
}

// Shop is a merchant and its credentials.
type Shop struct {
	ID          int64
	Domain      string
	AccessToken string // catalog API token
	APIKey      string // key callers present to this service
}

// CategoryRecord is a stored category. Inactive categories are kept but
// never returned by ActiveCategories.
type CategoryRecord struct {
	category.Category
	Insurer string
	Active  bool
}

// PromptSettings are the per-shop semantic classifier settings. The zero
// value means nothing was configured.
type PromptSettings struct {
	ShopID            int64
	Intro             string
	GeneralCategoryID *int64
}

// NormalizeDomain lower-cases and trims a shop domain.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	return strings.TrimSuffix(d, "/")
}
