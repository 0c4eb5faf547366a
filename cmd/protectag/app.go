package main

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/protectag/internal/llm"
	"github.com/cognicore/protectag/internal/settings"
	"github.com/cognicore/protectag/internal/shopify"
	"github.com/cognicore/protectag/pkg/protectag"
	"github.com/cognicore/protectag/pkg/protectag/catalog"
	"github.com/cognicore/protectag/pkg/protectag/config"
	"github.com/cognicore/protectag/pkg/protectag/reconcile"
	"github.com/cognicore/protectag/pkg/protectag/semantic"
	"github.com/cognicore/protectag/pkg/protectag/store"
	"github.com/cognicore/protectag/pkg/protectag/store/rediscache"
	"github.com/cognicore/protectag/pkg/protectag/store/sqlite"
)

// openStore opens the SQLite store, behind the Redis category cache when
// an address is configured.
func openStore(ctx context.Context, s *settings.Settings, log *zap.SugaredLogger) (store.Store, error) {
	st, err := sqlite.OpenSQLite(ctx, s.Store.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %s", s.Store.Path)
	}
	if s.Store.RedisAddr == "" {
		return st, nil
	}
	return rediscache.Open(st, rediscache.Options{
		Address:  s.Store.RedisAddr,
		Password: s.Store.RedisPassword,
		DB:       s.Store.RedisDB,
		TTL:      s.Store.CacheTTL,
		Logger:   log.Named("cache"),
	}), nil
}

// newBackend returns the configured semantic classifier, or nil when the
// heuristic alone should be used.
func newBackend(ctx context.Context, s *settings.Settings, log *zap.SugaredLogger) (semantic.Backend, error) {
	key := s.LLM.Key()
	switch s.LLM.Provider {
	case settings.ProviderNone:
		return nil, nil
	case settings.ProviderOpenAI:
		if key == "" {
			log.Warnw("no OpenAI API key configured, semantic fallback uses the heuristic only")
			return nil, nil
		}
		temp := s.LLM.Temperature
		return &llm.Client{
			BaseURL:     s.LLM.BaseURL,
			APIKey:      key,
			Model:       s.LLM.Model,
			Temperature: &temp,
			Logger:      log.Named("llm"),
		}, nil
	case settings.ProviderGemini:
		if key == "" {
			log.Warnw("no Gemini API key configured, semantic fallback uses the heuristic only")
			return nil, nil
		}
		temp := float32(s.LLM.Temperature)
		return llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:      key,
			Model:       s.LLM.Model,
			Temperature: &temp,
			BaseURL:     s.LLM.BaseURL,
		})
	}
	return nil, errors.Newf("unknown llm provider %q", s.LLM.Provider)
}

// shopifyCatalogs hands out one client per shop so that concurrent runs for
// the same shop share a rate limiter.
type shopifyCatalogs struct {
	settings *settings.Settings
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	clients map[string]*shopify.Client
}

func (f *shopifyCatalogs) open(shop store.Shop) (protectag.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := shop.Domain + "\x00" + shop.AccessToken
	if c, ok := f.clients[key]; ok {
		return c, nil
	}
	c, err := shopify.New(shopify.Config{
		Shop:              shop.Domain,
		AccessToken:       shop.AccessToken,
		APIVersion:        f.settings.Shopify.APIVersion,
		Timeout:           f.settings.Shopify.Timeout,
		RequestsPerSecond: f.settings.Shopify.RequestsPerSecond,
		Logger:            f.logger,
	})
	if err != nil {
		return nil, err
	}
	if f.clients == nil {
		f.clients = make(map[string]*shopify.Client)
	}
	f.clients[key] = c
	return c, nil
}

// newEngine wires the engine from settings. The caller closes it.
func newEngine(ctx context.Context, s *settings.Settings, log *zap.SugaredLogger) (*protectag.Engine, error) {
	comp, err := (&config.Loader{RulesPath: s.Rules.Path}).Load()
	if err != nil {
		return nil, err
	}
	filter, err := catalog.NewFilter(s.Catalog.ExcludeExpr)
	if err != nil {
		return nil, err
	}
	backend, err := newBackend(ctx, s, log)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, s, log)
	if err != nil {
		return nil, err
	}

	catalogs := &shopifyCatalogs{settings: s, logger: log.Named("shopify")}
	return protectag.New(protectag.Options{
		Store:      st,
		Catalogs:   catalogs.open,
		Classifier: comp.Classifier,
		Semantic: semantic.New(semantic.Options{
			Backend:    backend,
			Classifier: comp.Classifier,
			Timeout:    s.LLM.Timeout,
			Logger:     log.Named("semantic"),
		}),
		Markers:          reconcile.Markers{Prefix: s.Markers.Prefix},
		ProtectionVendor: s.Catalog.ProtectionVendor,
		PageSize:         s.Catalog.PageSize,
		ClearPageSize:    s.Catalog.ClearPageSize,
		HardCap:          s.Catalog.HardCap,
		Filter:           filter,
		Logger:           log.Named("engine"),
	}), nil
}
