// Package shopify is a minimal Admin GraphQL client: product pages, tag
// reads and the tagsAdd/tagsRemove mutations.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cognicore/protectag/pkg/protectag/internalerr"
)

const (
	DefaultAPIVersion = "2024-10"
	DefaultTimeout    = 30 * time.Second
	// DefaultRequestsPerSecond stays under the Admin API leaky bucket.
	DefaultRequestsPerSecond = 2
)

// Config configures a Client.
type Config struct {
	Shop              string // e.g. demo.myshopify.com
	AccessToken       string
	APIVersion        string
	Timeout           time.Duration // per call
	RequestsPerSecond float64       // <= 0 disables limiting
	Endpoint          string        // overrides the shop URL, used by tests
	HTTPClient        *http.Client
	Logger            *zap.SugaredLogger
}

// Client talks to one shop.
type Client struct {
	endpoint string
	token    string
	timeout  time.Duration
	limiter  *rate.Limiter
	http     *http.Client
	logger   *zap.SugaredLogger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Shop == "" && cfg.Endpoint == "" {
		return nil, errors.Wrap(internalerr.ErrInvalidInput, "shopify: shop domain required")
	}
	if cfg.AccessToken == "" {
		return nil, errors.Wrap(internalerr.ErrInvalidInput, "shopify: access token required")
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", cfg.Shop, version)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Client{
		endpoint: endpoint,
		token:    cfg.AccessToken,
		timeout:  timeout,
		http:     httpClient,
		logger:   logger.With("shop", cfg.Shop),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shopify: HTTP %d: %s", e.Code, e.Body)
}

// GraphQLErrors are top-level errors of a GraphQL response.
type GraphQLErrors []string

func (e GraphQLErrors) Error() string {
	return "shopify: graphql: " + strings.Join(e, "; ")
}

// UserErrors are mutation userErrors.
type UserErrors []UserError

// UserError is one mutation validation failure.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func (e UserErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ue := range e {
		msgs[i] = ue.Message
	}
	return "shopify: " + strings.Join(msgs, "; ")
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do runs one GraphQL call under the rate limiter and the per-call timeout
// and decodes data into out.
func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "shopify: rate limiter")
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "shopify request"), internalerr.ErrUpstream)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errors.Wrap(err, "shopify: read response")
	}
	c.logger.Debugw("shopify call", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode/100 != 2 {
		snippet := string(raw)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return errors.Mark(&StatusError{Code: resp.StatusCode, Body: snippet}, internalerr.ErrUpstream)
	}

	var payload gqlResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errors.Wrap(err, "shopify: decode response")
	}
	if len(payload.Errors) > 0 {
		msgs := make(GraphQLErrors, len(payload.Errors))
		for i, e := range payload.Errors {
			msgs[i] = e.Message
		}
		return errors.Mark(msgs, internalerr.ErrUpstream)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload.Data, out); err != nil {
		return errors.Wrap(err, "shopify: decode data")
	}
	return nil
}
