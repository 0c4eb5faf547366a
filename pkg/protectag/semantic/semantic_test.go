package semantic_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/classify"
	"github.com/cognicore/protectag/pkg/protectag/config"
	"github.com/cognicore/protectag/pkg/protectag/product"
	"github.com/cognicore/protectag/pkg/protectag/semantic"
)

type fakeBackend struct {
	answer string
	err    error
	panics bool
	calls  int
	system string
	user   string
	block  bool
}

func (f *fakeBackend) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	if f.panics {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.answer, f.err
}

func registry() *category.Registry {
	return category.NewRegistry([]category.Category{
		{ID: 1, Name: "Consumer Electronics"},
		{ID: 2, Name: "Desktops, Laptops"},
		{ID: 3, Name: "Tablets"},
		{ID: 8, Name: "Smart Lighting"},
	}, nil)
}

func newFallback(b semantic.Backend) *semantic.Fallback {
	return semantic.New(semantic.Options{
		Backend:    b,
		Classifier: classify.New(config.DefaultRules()),
		Timeout:    50 * time.Millisecond,
	})
}

var bulb = product.Product{ID: "gid://shopify/Product/1", Title: "Generic Smart Bulb X1", Description: "wifi enabled bulb"}

func requireID(t *testing.T, want int64, res semantic.Result) {
	t.Helper()
	require.NotNil(t, res.CategoryID)
	assert.Equal(t, want, *res.CategoryID)
}

func TestModelAnswerAccepted(t *testing.T) {
	b := &fakeBackend{answer: `{"category_id": 8}`}
	res := newFallback(b).ClassifyAmbiguous(context.Background(), bulb, registry(), "")

	requireID(t, 8, res)
	assert.Equal(t, semantic.SourceModel, res.Source)
	assert.Equal(t, 1, b.calls)
}

func TestNullAnswerResolvesToGeneral(t *testing.T) {
	b := &fakeBackend{answer: `{"category_id": null}`}
	res := newFallback(b).ClassifyAmbiguous(context.Background(), bulb, registry(), "")

	requireID(t, 1, res)
	assert.Equal(t, semantic.SourceGeneral, res.Source)
}

func TestNullAnswerWithoutGeneral(t *testing.T) {
	reg := category.NewRegistry([]category.Category{{ID: 3, Name: "Tablets"}}, nil)
	b := &fakeBackend{answer: `{"category_id": null}`}
	res := newFallback(b).ClassifyAmbiguous(context.Background(), bulb, reg, "")

	assert.Nil(t, res.CategoryID)
}

func TestDegradePaths(t *testing.T) {
	laptop := product.Product{ID: "p2", Title: "Refurbished mini pc", Tags: []string{"smart"}}

	tests := []struct {
		name    string
		backend *fakeBackend
		p       product.Product
		want    int64
		source  semantic.Source
	}{
		{"transport error", &fakeBackend{err: errors.New("503")}, laptop, 2, semantic.SourceHeuristic},
		{"malformed json", &fakeBackend{answer: "I think it's a laptop"}, laptop, 2, semantic.SourceHeuristic},
		{"wrong shape", &fakeBackend{answer: `{"category": 2}`}, laptop, 2, semantic.SourceHeuristic},
		{"unknown category id", &fakeBackend{answer: `{"category_id": 999}`}, laptop, 2, semantic.SourceHeuristic},
		{"heuristic generic term", &fakeBackend{err: errors.New("down")}, bulb, 1, semantic.SourceGeneral},
		{"heuristic miss uses general", &fakeBackend{err: errors.New("down")}, product.Product{Title: "USB gizmo"}, 1, semantic.SourceGeneral},
		{"panic", &fakeBackend{panics: true}, laptop, 2, semantic.SourceHeuristic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newFallback(tt.backend).ClassifyAmbiguous(context.Background(), tt.p, registry(), "")
			requireID(t, tt.want, res)
			assert.Equal(t, tt.source, res.Source)
		})
	}
}

func TestTimeoutDegrades(t *testing.T) {
	b := &fakeBackend{block: true}
	start := time.Now()
	res := newFallback(b).ClassifyAmbiguous(context.Background(), bulb, registry(), "")

	assert.Less(t, time.Since(start), 2*time.Second)
	requireID(t, 1, res)
}

func TestNilBackendUsesHeuristic(t *testing.T) {
	res := newFallback(nil).ClassifyAmbiguous(context.Background(), product.Product{Title: "iPad case with keyboard"}, registry(), "")
	requireID(t, 3, res)
	assert.Equal(t, semantic.SourceHeuristic, res.Source)
}

func TestPromptContents(t *testing.T) {
	b := &fakeBackend{answer: `{"category_id": null}`}
	p := bulb
	p.Description = strings.Repeat("x", 3000)
	p.Tags = []string{"lighting"}

	newFallback(b).ClassifyAmbiguous(context.Background(), p, registry(), "We sell home automation.")

	assert.True(t, strings.HasPrefix(b.system, "We sell home automation.\n"))
	assert.Contains(t, b.system, "Desktops, Laptops, Tablets, Smart Lighting")
	assert.NotContains(t, b.system, "among: Consumer Electronics")
	assert.Contains(t, b.system, `{"category_id": number|null}`)

	assert.Contains(t, b.user, `"id":8`)
	assert.Contains(t, b.user, "title: Generic Smart Bulb X1")
	assert.Contains(t, b.user, `tags: ["lighting"]`)
	body := b.user[strings.Index(b.user, "body: ")+len("body: "):]
	assert.Len(t, body, semantic.MaxDescriptionRunes)
}
