package server

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/cognicore/protectag/pkg/protectag"
	"github.com/cognicore/protectag/pkg/protectag/internalerr"
	"github.com/cognicore/protectag/pkg/protectag/product"
	"github.com/cognicore/protectag/pkg/protectag/progress"
)

type evaluateBody struct {
	CleanSweep  bool   `json:"cleanSweep"`
	PromptIntro string `json:"promptIntro"`
}

type tagBody struct {
	ProductID  string `json:"productId"`
	Enable     bool   `json:"enable"`
	CategoryID *int64 `json:"categoryId"`
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, v any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(internalerr.ErrInvalidInput, "request body: %v", err)
	}
	return nil
}

func (s *Server) evaluate(c *gin.Context) {
	var body evaluateBody
	if err := bindOptional(c, &body); err != nil {
		s.abort(c, err)
		return
	}
	s.stream(c, func(ctx context.Context) (<-chan progress.Record, error) {
		return s.svc.Evaluate(ctx, protectag.EvaluateRequest{
			Shop:        shopOf(c).Domain,
			CleanSweep:  body.CleanSweep,
			PromptIntro: body.PromptIntro,
		})
	})
}

func (s *Server) clearTags(c *gin.Context) {
	s.stream(c, func(ctx context.Context) (<-chan progress.Record, error) {
		return s.svc.ClearMarkers(ctx, protectag.ClearRequest{Shop: shopOf(c).Domain})
	})
}

// stream starts a run and copies its records to the response. Errors before
// the first record become a JSON error response. A write failure cancels
// the run.
func (s *Server) stream(c *gin.Context, start func(ctx context.Context) (<-chan progress.Record, error)) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ch, err := start(ctx)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	enc := progress.NewEncoder(c.Writer)
	for rec := range ch {
		if ctx.Err() != nil {
			continue
		}
		if err := enc.Encode(rec); err != nil {
			s.logger.Warnw("progress stream write failed", "error", err,
				"request_id", c.GetString(ctxRequestID))
			cancel()
		}
	}
}

func (s *Server) tag(c *gin.Context) {
	var body tagBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.abort(c, errors.Wrapf(internalerr.ErrInvalidInput, "request body: %v", err))
		return
	}
	changes, err := s.svc.TagProduct(c.Request.Context(), protectag.TagRequest{
		Shop:       shopOf(c).Domain,
		ProductID:  body.ProductID,
		Enable:     body.Enable,
		CategoryID: body.CategoryID,
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "removed": nonNil(changes.Remove), "added": nonNil(changes.Add)})
}

func (s *Server) categories(c *gin.Context) {
	cats, err := s.svc.Categories(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	for i := range cats {
		cats[i].Aliases = nonNil(cats[i].Aliases)
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

func (s *Server) list(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.abort(c, errors.Wrapf(internalerr.ErrInvalidInput, "limit %q", raw))
			return
		}
		limit = n
	}
	page, err := s.svc.ListProducts(c.Request.Context(), shopOf(c).Domain, limit, c.Query("cursor"))
	if err != nil {
		s.abort(c, err)
		return
	}
	items := page.Products
	if items == nil {
		items = []product.Product{}
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"pageInfo": gin.H{
			"hasNextPage": page.HasNextPage,
			"endCursor":   page.EndCursor,
		},
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
