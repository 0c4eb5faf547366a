package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/protectag/pkg/protectag/internalerr"
)

type roundTrip func(*http.Request) *http.Response

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestCompleteSuccess(t *testing.T) {
	var sent chatRequest
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		APIKey:  "sk-test",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
					t.Fatalf("unexpected auth header %q", got)
				}
				body, _ := io.ReadAll(req.Body)
				if err := json.Unmarshal(body, &sent); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				return jsonResponse(200, `{"choices":[{"message":{"role":"assistant","content":"{\"category_id\": 4}"}}]}`)
			}),
		},
	}

	out, err := client.Complete(context.Background(), "system", "user prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"category_id": 4}` {
		t.Fatalf("unexpected output: %s", out)
	}
	if sent.Model != DefaultModel {
		t.Errorf("model = %q, want %q", sent.Model, DefaultModel)
	}
	if sent.Temperature != DefaultTemperature {
		t.Errorf("temperature = %v", sent.Temperature)
	}
	if sent.ResponseFormat == nil || sent.ResponseFormat.Type != "json_object" {
		t.Errorf("response format = %+v", sent.ResponseFormat)
	}
	if len(sent.Messages) != 2 || sent.Messages[0].Role != "system" || sent.Messages[1].Content != "user prompt" {
		t.Errorf("messages = %+v", sent.Messages)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		upstream bool
	}{
		{"api error", 200, `{"error":{"message":"bad"}}`, true},
		{"http status", 503, `upstream unavailable`, true},
		{"error with status", 429, `{"error":{"message":"rate limited"}}`, true},
		{"no choices", 200, `{"choices":[]}`, false},
		{"garbage", 200, `<html>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{
				APIKey: "k",
				HTTPClient: &http.Client{Transport: roundTrip(func(*http.Request) *http.Response {
					return jsonResponse(tt.status, tt.body)
				})},
			}
			_, err := client.Complete(context.Background(), "s", "u")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, internalerr.ErrUpstream); got != tt.upstream {
				t.Errorf("ErrUpstream = %v, want %v (%v)", got, tt.upstream, err)
			}
		})
	}
}

func TestCompleteRequiresKey(t *testing.T) {
	if _, err := (&Client{}).Complete(context.Background(), "s", "u"); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestCompleteHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &Client{BaseURL: srv.URL, APIKey: "k"}
	if _, err := client.Complete(ctx, "s", "u"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestGeminiComplete(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"category_id\": null}"}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGeminiClient(context.Background(), GeminiConfig{APIKey: "g-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	out, err := g.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"category_id": null}` {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(path, DefaultGeminiModel) || !strings.HasSuffix(path, ":generateContent") {
		t.Errorf("unexpected path %q", path)
	}
}

func TestGeminiRequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(context.Background(), GeminiConfig{}); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
