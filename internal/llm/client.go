package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/protectag/pkg/protectag/internalerr"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1/chat/completions"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
)

// Client calls an OpenAI-compatible chat completion endpoint and asks for a
// JSON object response.
type Client struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64 // nil = DefaultTemperature

	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one system and one user message and returns the raw
// assistant content.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.APIKey == "" {
		return "", errors.Wrap(internalerr.ErrInvalidConfig, "llm: api key required")
	}
	messages := []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}}
	start := time.Now()
	payload, err := c.send(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("llm: empty response")
	}
	c.logger().Debugw("llm completion", "model", c.model(), "duration", time.Since(start))
	return payload.Choices[0].Message.Content, nil
}

func (c *Client) send(ctx context.Context, messages []chatMessage) (*chatResponse, error) {
	temp := DefaultTemperature
	if c.Temperature != nil {
		temp = *c.Temperature
	}
	reqBody, err := json.Marshal(chatRequest{
		Model:          c.model(),
		Messages:       messages,
		Temperature:    temp,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "llm request"), internalerr.ErrUpstream)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "llm: read response")
	}
	var payload chatResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode/100 != 2 {
			return nil, errors.Mark(errors.Newf("llm: HTTP %d", resp.StatusCode), internalerr.ErrUpstream)
		}
		return nil, errors.Wrap(err, "llm: decode response")
	}
	if payload.Error != nil {
		return nil, errors.Mark(errors.Newf("llm error: %s", payload.Error.Message), internalerr.ErrUpstream)
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.Mark(errors.Newf("llm: HTTP %d", resp.StatusCode), internalerr.ErrUpstream)
	}
	return &payload, nil
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) model() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) logger() *zap.SugaredLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop().Sugar()
}
