package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cognicore/protectag/pkg/protectag/internalerr"
	"github.com/cognicore/protectag/pkg/protectag/store"
)

const (
	HeaderRequestID  = "X-Request-ID"
	HeaderShopDomain = "X-Shop-Domain"
	HeaderAPIKey     = "X-API-Key"

	ctxRequestID = "request_id"
	ctxShop      = "shop"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(ctxRequestID))
	}
}

// authenticate resolves the calling shop from X-Shop-Domain (or ?shop=)
// and its API key from X-API-Key (or a bearer token). Preflight requests
// pass through.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		domain := c.GetHeader(HeaderShopDomain)
		if domain == "" {
			domain = c.Query("shop")
		}
		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if strings.TrimSpace(domain) == "" || key == "" {
			s.abort(c, errors.Wrap(internalerr.ErrUnauthorized, "shop domain and api key required"))
			return
		}

		shop, err := s.svc.Authenticate(c.Request.Context(), domain, key)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.Set(ctxShop, shop)
		c.Next()
	}
}

func shopOf(c *gin.Context) store.Shop {
	v, _ := c.Get(ctxShop)
	shop, _ := v.(store.Shop)
	return shop
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, internalerr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, internalerr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, internalerr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, internalerr.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, internalerr.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, internalerr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abort writes err as {"error": ...} with its mapped status.
func (s *Server) abort(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Errorw("request failed", "path", c.FullPath(), "error", err,
			"request_id", c.GetString(ctxRequestID))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
