// Package server exposes the engine over HTTP with gin. Batch endpoints
// stream progress records as NDJSON.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cognicore/protectag/pkg/protectag"
	"github.com/cognicore/protectag/pkg/protectag/catalog"
	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/progress"
	"github.com/cognicore/protectag/pkg/protectag/reconcile"
	"github.com/cognicore/protectag/pkg/protectag/store"
)

// Service is the engine surface the server needs.
type Service interface {
	Authenticate(ctx context.Context, domain, apiKey string) (store.Shop, error)
	Evaluate(ctx context.Context, req protectag.EvaluateRequest) (<-chan progress.Record, error)
	ClearMarkers(ctx context.Context, req protectag.ClearRequest) (<-chan progress.Record, error)
	TagProduct(ctx context.Context, req protectag.TagRequest) (reconcile.Changes, error)
	Categories(ctx context.Context) ([]category.Category, error)
	ListProducts(ctx context.Context, domain string, limit int, cursor string) (catalog.Page, error)
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc    Service
	logger *zap.SugaredLogger
	router *gin.Engine
}

// New builds the router. A nil logger discards logs.
func New(svc Service, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{svc: svc, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	products := r.Group("/products", s.authenticate())
	products.POST("/evaluate", s.evaluate)
	products.POST("/clear-tags", s.clearTags)
	products.POST("/tag", s.tag)
	products.GET("/categories", s.categories)
	products.GET("/list", s.list)
	products.OPTIONS("/*path", preflight)

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	s.logger.Infow("http server stopped")
	return nil
}

func preflight(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", strings.Join([]string{
		"Content-Type", "Authorization", HeaderAPIKey, HeaderShopDomain, HeaderRequestID,
	}, ", "))
	c.AbortWithStatus(http.StatusNoContent)
}
