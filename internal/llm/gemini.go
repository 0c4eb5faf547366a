package llm

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"google.golang.org/genai"

	"github.com/cognicore/protectag/pkg/protectag/internalerr"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature *float32
	BaseURL     string       // optional API endpoint override
	HTTPClient  *http.Client // optional
}

// GeminiClient classifies through the Gemini API with a JSON response type.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient creates a Gemini backend.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(internalerr.ErrInvalidConfig, "gemini: api key required")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	temp := float32(DefaultTemperature)
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}
	return &GeminiClient{client: client, model: model, temperature: temp}, nil
}

// Complete implements the semantic backend contract.
func (g *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "gemini generate"), internalerr.ErrUpstream)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
