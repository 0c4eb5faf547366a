package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/protectag/pkg/protectag/catalog"
	"github.com/cognicore/protectag/pkg/protectag/internalerr"
)

type recordedCall struct {
	Query     string
	Variables map[string]any
	Token     string
}

// graphQLServer answers every call with respond and records requests.
func graphQLServer(t *testing.T, respond func(call recordedCall) (int, string)) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req gqlRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		call := recordedCall{Query: req.Query, Variables: req.Variables, Token: r.Header.Get("X-Shopify-Access-Token")}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()
		status, out := respond(call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(out))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{Shop: "demo.myshopify.com", AccessToken: "shpat_test", Endpoint: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestProductPage(t *testing.T) {
	srv, calls := graphQLServer(t, func(recordedCall) (int, string) {
		return 200, `{"data":{"products":{
			"pageInfo":{"hasNextPage":true,"endCursor":"c2"},
			"edges":[{"node":{"id":"gid://shopify/Product/1","title":"OLED TV","vendor":"Samsung","productType":"TV","tags":["red"],"bodyHtml":"<p>55in <b>4K</b></p><script>x()</script>"}},
			         {"node":{"id":"gid://shopify/Product/2","title":"Shirt","vendor":"Acme","productType":"","tags":null,"bodyHtml":""}}]}}}`
	})
	c := newTestClient(t, srv)

	page, err := c.ProductPage(context.Background(), catalog.PageRequest{First: 50, After: "c1", Query: `-vendor:"Protection"`})
	require.NoError(t, err)

	require.Len(t, page.Products, 2)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "c2", page.EndCursor)
	assert.Equal(t, "55in 4K", page.Products[0].Description)
	assert.Equal(t, []string{"red"}, page.Products[0].Tags)
	assert.Equal(t, []string{}, page.Products[1].Tags)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "shpat_test", call.Token)
	assert.Equal(t, float64(50), call.Variables["first"])
	assert.Equal(t, "c1", call.Variables["after"])
	assert.Equal(t, `-vendor:"Protection"`, call.Variables["query"])
}

func TestProductPageFirstPageSendsNullCursor(t *testing.T) {
	srv, calls := graphQLServer(t, func(recordedCall) (int, string) {
		return 200, `{"data":{"products":{"pageInfo":{"hasNextPage":false,"endCursor":null},"edges":[]}}}`
	})
	c := newTestClient(t, srv)

	page, err := c.ProductPage(context.Background(), catalog.PageRequest{First: 10})
	require.NoError(t, err)
	assert.False(t, page.HasNextPage)
	v, ok := (*calls)[0].Variables["after"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestStatusAndGraphQLErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"http 502", 502, `bad gateway`, func(t *testing.T, err error) {
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, 502, se.Code)
		}},
		{"graphql errors", 200, `{"errors":[{"message":"Throttled"}]}`, func(t *testing.T, err error) {
			assert.Contains(t, err.Error(), "Throttled")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := graphQLServer(t, func(recordedCall) (int, string) { return tt.status, tt.body })
			c := newTestClient(t, srv)
			_, err := c.ProductPage(context.Background(), catalog.PageRequest{First: 1})
			require.Error(t, err)
			assert.True(t, errors.Is(err, internalerr.ErrUpstream))
			tt.check(t, err)
		})
	}
}

func TestTags(t *testing.T) {
	srv, _ := graphQLServer(t, func(call recordedCall) (int, string) {
		if call.Variables["id"] == "missing" {
			return 200, `{"data":{"product":null}}`
		}
		return 200, `{"data":{"product":{"tags":["protection_on","red"]}}}`
	})
	c := newTestClient(t, srv)

	tags, err := c.Tags(context.Background(), "gid://shopify/Product/1")
	require.NoError(t, err)
	assert.Equal(t, []string{"protection_on", "red"}, tags)

	_, err = c.Tags(context.Background(), "missing")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound))
}

func TestMutations(t *testing.T) {
	srv, calls := graphQLServer(t, func(call recordedCall) (int, string) {
		if strings.Contains(call.Query, "tagsAdd") {
			return 200, `{"data":{"tagsAdd":{"userErrors":[{"field":["tags"],"message":"Tags is invalid"}]}}}`
		}
		return 200, `{"data":{"tagsRemove":{"userErrors":[]}}}`
	})
	c := newTestClient(t, srv)

	require.NoError(t, c.RemoveTags(context.Background(), "p1", []string{"protection_on"}))

	err := c.AddTags(context.Background(), "p1", []string{"protection_cat7"})
	var ue UserErrors
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Tags is invalid", ue[0].Message)

	require.NoError(t, c.AddTags(context.Background(), "p1", nil))
	require.Len(t, *calls, 2)
	assert.Equal(t, []any{"protection_on"}, (*calls)[0].Variables["tags"])
}

func TestPerCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(Config{Shop: "s", AccessToken: "t", Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Tags(context.Background(), "p")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimiterSpacesCalls(t *testing.T) {
	srv, _ := graphQLServer(t, func(recordedCall) (int, string) {
		return 200, `{"data":{"product":{"tags":[]}}}`
	})
	c, err := New(Config{Shop: "s", AccessToken: "t", Endpoint: srv.URL, RequestsPerSecond: 20})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Tags(context.Background(), "p")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{AccessToken: "t"})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput))
	_, err = New(Config{Shop: "s"})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput))
}

func TestStripHTML(t *testing.T) {
	tests := map[string]string{
		"":                                  "",
		"plain text":                        "plain text",
		"<p>Hello&nbsp;<em>world</em></p>":  "Hello world",
		"<ul><li>One</li><li>Two</li></ul>": "One Two",
		"<style>p{}</style><div>Body</div>": "Body",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripHTML(in), "input %q", in)
	}
}

func TestDescriptionIgnoresMarkup(t *testing.T) {
	n := productNode{ID: "gid://shopify/Product/9", Title: "Shirt", BodyHTML: `<div class="display" data-kind="laptop">Cotton shirt</div>`}
	p := n.toProduct()
	assert.Equal(t, "Cotton shirt", p.Description)
	assert.NotContains(t, p.Description, "display")
	assert.Equal(t, []string{}, p.Tags)
}
