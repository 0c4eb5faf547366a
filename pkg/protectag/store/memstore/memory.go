package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/internalerr"
	"github.com/cognicore/protectag/pkg/protectag/store"
)

// Store is an in-memory implementation of store.Store for tests and dry runs.
type Store struct {
	mu          sync.RWMutex
	nextShopID  int64
	shops       map[int64]store.Shop
	domainIndex map[string]int64
	categories  map[int64]store.CategoryRecord
	prompts     map[int64]store.PromptSettings
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		nextShopID:  1,
		shops:       make(map[int64]store.Shop),
		domainIndex: make(map[string]int64),
		categories:  make(map[int64]store.CategoryRecord),
		prompts:     make(map[int64]store.PromptSettings),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// ShopByDomain implements store.Store.
func (s *Store) ShopByDomain(ctx context.Context, domain string) (store.Shop, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.domainIndex[store.NormalizeDomain(domain)]
	if !ok {
		return store.Shop{}, false, nil
	}
	return s.shops[id], true, nil
}

// UpsertShop inserts or updates a shop, keyed by domain.
func (s *Store) UpsertShop(ctx context.Context, sh store.Shop) (store.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh.Domain = store.NormalizeDomain(sh.Domain)
	if sh.Domain == "" {
		return store.Shop{}, errors.Wrap(internalerr.ErrInvalidInput, "shop domain required")
	}
	if id, ok := s.domainIndex[sh.Domain]; ok {
		sh.ID = id
	} else {
		sh.ID = s.nextShopID
		s.nextShopID++
		s.domainIndex[sh.Domain] = sh.ID
	}
	s.shops[sh.ID] = sh
	return sh, nil
}

// ActiveCategories returns active categories ordered by id.
func (s *Store) ActiveCategories(ctx context.Context) ([]category.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]category.Category, 0, len(s.categories))
	for _, rec := range s.categories {
		if !rec.Active {
			continue
		}
		out = append(out, copyCategory(rec.Category))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertCategory inserts or replaces a category.
func (s *Store) UpsertCategory(ctx context.Context, c store.CategoryRecord) error {
	if c.ID <= 0 {
		return errors.Wrapf(internalerr.ErrInvalidInput, "category id %d", c.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Category = copyCategory(c.Category)
	s.categories[c.ID] = c
	return nil
}

// PromptSettings implements store.Store.
func (s *Store) PromptSettings(ctx context.Context, shopID int64) (store.PromptSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ps, ok := s.prompts[shopID]; ok {
		return ps, nil
	}
	return store.PromptSettings{ShopID: shopID}, nil
}

// UpsertPromptSettings implements store.Store.
func (s *Store) UpsertPromptSettings(ctx context.Context, ps store.PromptSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ps.GeneralCategoryID != nil {
		id := *ps.GeneralCategoryID
		ps.GeneralCategoryID = &id
	}
	s.prompts[ps.ShopID] = ps
	return nil
}

func copyCategory(c category.Category) category.Category {
	aliases := make([]string, 0, len(c.Aliases))
	for _, a := range c.Aliases {
		if a != "" {
			aliases = append(aliases, a)
		}
	}
	c.Aliases = aliases
	return c
}
