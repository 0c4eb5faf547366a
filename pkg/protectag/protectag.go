package protectag

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/protectag/pkg/protectag/catalog"
	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/classify"
	"github.com/cognicore/protectag/pkg/protectag/internalerr"
	"github.com/cognicore/protectag/pkg/protectag/product"
	"github.com/cognicore/protectag/pkg/protectag/progress"
	"github.com/cognicore/protectag/pkg/protectag/reconcile"
	"github.com/cognicore/protectag/pkg/protectag/semantic"
	"github.com/cognicore/protectag/pkg/protectag/store"
)

// Catalog is one shop's product catalog: paged queries plus tag reads and
// mutations.
type Catalog interface {
	catalog.Source
	reconcile.Tagger
}

// CatalogFactory opens the catalog of a shop.
type CatalogFactory func(shop store.Shop) (Catalog, error)

// Engine classifies catalog products and reconciles their marker tags
type Engine struct {
	store      store.Store
	catalogs   CatalogFactory
	classifier *classify.Classifier
	semantic   *semantic.Fallback
	markers    reconcile.Markers
	vendor     string
	pageSize   int
	clearSize  int
	hardCap    int
	filter     *catalog.Filter
	runIDs     *progress.RunIDs
	logger     *zap.SugaredLogger
}

// Options configures an Engine
type Options struct {
	Store      store.Store
	Catalogs   CatalogFactory
	Classifier *classify.Classifier
	Semantic   *semantic.Fallback // nil = heuristic only
	Markers    reconcile.Markers

	ProtectionVendor string // excluded from every scan
	PageSize         int    // evaluate page size; 0 = catalog.DefaultPageSize
	ClearPageSize    int    // clear page size; 0 = catalog.ClearPageSize
	HardCap          int    // evaluate candidate cap; 0 = catalog.DefaultHardCap, <0 = unbounded
	Filter           *catalog.Filter

	Logger *zap.SugaredLogger
}

// New creates an Engine with the given dependencies
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	sem := opts.Semantic
	if sem == nil {
		sem = semantic.New(semantic.Options{Classifier: opts.Classifier, Logger: logger})
	}
	e := &Engine{
		store:      opts.Store,
		catalogs:   opts.Catalogs,
		classifier: opts.Classifier,
		semantic:   sem,
		markers:    opts.Markers,
		vendor:     opts.ProtectionVendor,
		pageSize:   opts.PageSize,
		clearSize:  opts.ClearPageSize,
		hardCap:    opts.HardCap,
		filter:     opts.Filter,
		runIDs:     progress.NewRunIDs(),
		logger:     logger,
	}
	if e.vendor == "" {
		e.vendor = catalog.DefaultProtectionVendor
	}
	if e.pageSize <= 0 {
		e.pageSize = catalog.DefaultPageSize
	}
	if e.clearSize <= 0 {
		e.clearSize = catalog.ClearPageSize
	}
	switch {
	case e.hardCap == 0:
		e.hardCap = catalog.DefaultHardCap
	case e.hardCap < 0:
		e.hardCap = 0
	}
	return e
}

// Close cleanly shuts down the engine's store
func (e *Engine) Close() error {
	return e.store.Close()
}

// Markers returns the marker families the engine writes.
func (e *Engine) Markers() reconcile.Markers { return e.markers }

// Authenticate resolves a shop by domain and checks the caller's API key.
func (e *Engine) Authenticate(ctx context.Context, domain, apiKey string) (store.Shop, error) {
	shop, err := e.lookupShop(ctx, domain)
	if err != nil {
		return store.Shop{}, err
	}
	want := strings.TrimSpace(shop.APIKey)
	got := strings.TrimSpace(apiKey)
	if want == "" || got == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return store.Shop{}, errors.Wrapf(internalerr.ErrUnauthorized, "shop %s", shop.Domain)
	}
	return shop, nil
}

func (e *Engine) lookupShop(ctx context.Context, domain string) (store.Shop, error) {
	if store.NormalizeDomain(domain) == "" {
		return store.Shop{}, errors.Wrap(internalerr.ErrInvalidInput, "shop domain required")
	}
	shop, found, err := e.store.ShopByDomain(ctx, domain)
	if err != nil {
		return store.Shop{}, errors.Mark(errors.Wrap(err, "lookup shop"), internalerr.ErrStoreUnavailable)
	}
	if !found {
		return store.Shop{}, errors.Wrapf(internalerr.ErrNotFound, "shop %s", store.NormalizeDomain(domain))
	}
	return shop, nil
}

// session is everything one request needs about a shop, loaded once.
type session struct {
	shop     store.Shop
	catalog  Catalog
	registry *category.Registry
	intro    string
}

func (e *Engine) open(ctx context.Context, domain string) (*session, error) {
	shop, err := e.lookupShop(ctx, domain)
	if err != nil {
		return nil, err
	}
	if shop.AccessToken == "" {
		return nil, errors.Wrapf(internalerr.ErrInvalidInput, "shop %s has no catalog access token", shop.Domain)
	}
	cat, err := e.catalogs(shop)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog for %s", shop.Domain)
	}
	reg, settings, err := e.registry(ctx, shop)
	if err != nil {
		return nil, err
	}
	return &session{shop: shop, catalog: cat, registry: reg, intro: settings.Intro}, nil
}

func (e *Engine) registry(ctx context.Context, shop store.Shop) (*category.Registry, store.PromptSettings, error) {
	cats, err := e.store.ActiveCategories(ctx)
	if err != nil {
		return nil, store.PromptSettings{}, errors.Wrap(err, "load categories")
	}
	settings, err := e.store.PromptSettings(ctx, shop.ID)
	if err != nil {
		return nil, store.PromptSettings{}, errors.Wrap(err, "load prompt settings")
	}
	return category.NewRegistry(cats, settings.GeneralCategoryID), settings, nil
}

// Categories returns the active categories.
func (e *Engine) Categories(ctx context.Context) ([]category.Category, error) {
	cats, err := e.store.ActiveCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load categories")
	}
	return cats, nil
}

// Outcome is the marker state chosen for one product.
type Outcome struct {
	CategoryID *int64
	Enabled    bool
	Stage      string
}

// decide runs the deterministic classifier and, for electronic but
// unplaced products, the semantic fallback.
func (e *Engine) decide(ctx context.Context, p product.Product, reg *category.Registry, intro string) Outcome {
	d := e.classifier.Classify(p, reg)
	if !d.NeedsFallback() {
		return Outcome{CategoryID: d.CategoryID, Enabled: d.Eligible, Stage: d.Stage.String()}
	}
	res := e.semantic.ClassifyAmbiguous(ctx, p, reg, intro)
	return Outcome{CategoryID: res.CategoryID, Enabled: true, Stage: "semantic_" + res.Source.String()}
}

// ClassifyProduct classifies p against the shop's registry without touching
// any tags. An empty domain uses the registry with no shop settings.
func (e *Engine) ClassifyProduct(ctx context.Context, domain string, p product.Product) (Outcome, error) {
	var (
		shop store.Shop
		err  error
	)
	if domain != "" {
		if shop, err = e.lookupShop(ctx, domain); err != nil {
			return Outcome{}, err
		}
	}
	reg, settings, err := e.registry(ctx, shop)
	if err != nil {
		return Outcome{}, err
	}
	return e.decide(ctx, p, reg, settings.Intro), nil
}

// TagRequest sets one product's markers by hand.
type TagRequest struct {
	Shop       string
	ProductID  string
	Enable     bool
	CategoryID *int64
}

// TagProduct reconciles a single product to the requested state.
func (e *Engine) TagProduct(ctx context.Context, req TagRequest) (reconcile.Changes, error) {
	if strings.TrimSpace(req.ProductID) == "" {
		return reconcile.Changes{}, errors.Wrap(internalerr.ErrInvalidInput, "productId required")
	}
	if req.Enable && req.CategoryID == nil {
		return reconcile.Changes{}, errors.Wrap(internalerr.ErrInvalidInput, "categoryId required when enabling")
	}
	s, err := e.open(ctx, req.Shop)
	if err != nil {
		return reconcile.Changes{}, err
	}
	if req.CategoryID != nil && !s.registry.Contains(*req.CategoryID) {
		return reconcile.Changes{}, errors.Wrapf(internalerr.ErrInvalidInput, "category %d is not active", *req.CategoryID)
	}

	r := &reconcile.Reconciler{Markers: e.markers, Tagger: s.catalog}
	changes, err := r.Reconcile(ctx, req.ProductID, reconcile.Desired{CategoryID: req.CategoryID, Enabled: req.Enable})
	if err != nil {
		return changes, err
	}
	e.logger.Infow("product tagged", "shop", s.shop.Domain, "product_id", req.ProductID,
		"enabled", req.Enable, "removed", changes.Remove, "added", changes.Add)
	return changes, nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 250
)

// ListProducts returns one catalog page with the protection line excluded.
// limit is clamped to [1, 250]; 0 means 50.
func (e *Engine) ListProducts(ctx context.Context, domain string, limit int, cursor string) (catalog.Page, error) {
	switch {
	case limit == 0:
		limit = defaultListLimit
	case limit < 1:
		limit = 1
	case limit > maxListLimit:
		limit = maxListLimit
	}
	shop, err := e.lookupShop(ctx, domain)
	if err != nil {
		return catalog.Page{}, err
	}
	if shop.AccessToken == "" {
		return catalog.Page{}, errors.Wrapf(internalerr.ErrInvalidInput, "shop %s has no catalog access token", shop.Domain)
	}
	cat, err := e.catalogs(shop)
	if err != nil {
		return catalog.Page{}, errors.Wrapf(err, "open catalog for %s", shop.Domain)
	}

	ex := catalog.Exclusions{Vendor: e.vendor}
	page, err := cat.ProductPage(ctx, catalog.PageRequest{First: limit, After: cursor, Query: ex.Query()})
	if err != nil {
		return catalog.Page{}, err
	}
	kept := page.Products[:0]
	for _, p := range page.Products {
		if !ex.Excludes(p) {
			kept = append(kept, p)
		}
	}
	page.Products = kept
	return page, nil
}
