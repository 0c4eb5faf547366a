package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cognicore/protectag/internal/llm"
	"github.com/cognicore/protectag/internal/settings"
	"github.com/cognicore/protectag/internal/shopify"
	"github.com/cognicore/protectag/pkg/protectag/store"
)

func TestNewBackend(t *testing.T) {
	log := zap.NewNop().Sugar()
	ctx := context.Background()

	tests := []struct {
		name     string
		llm      settings.LLMSettings
		wantNil  bool
		wantType any
	}{
		{name: "none", llm: settings.LLMSettings{Provider: settings.ProviderNone, APIKey: "k"}, wantNil: true},
		{name: "openai without key", llm: settings.LLMSettings{Provider: settings.ProviderOpenAI}, wantNil: true},
		{name: "openai", llm: settings.LLMSettings{Provider: settings.ProviderOpenAI, OpenAIAPIKey: "sk"}, wantType: &llm.Client{}},
		{name: "gemini", llm: settings.LLMSettings{Provider: settings.ProviderGemini, GeminiAPIKey: "g"}, wantType: &llm.GeminiClient{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := newBackend(ctx, &settings.Settings{LLM: tt.llm}, log)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, b)
				return
			}
			assert.IsType(t, tt.wantType, b)
		})
	}

	_, err := newBackend(ctx, &settings.Settings{LLM: settings.LLMSettings{Provider: "claude"}}, log)
	assert.Error(t, err)
}

func TestShopifyCatalogsReuseClients(t *testing.T) {
	f := &shopifyCatalogs{settings: &settings.Settings{}, logger: zap.NewNop().Sugar()}

	a, err := f.open(store.Shop{Domain: "a.myshopify.com", AccessToken: "t1"})
	require.NoError(t, err)
	again, err := f.open(store.Shop{Domain: "a.myshopify.com", AccessToken: "t1"})
	require.NoError(t, err)
	assert.Same(t, a.(*shopify.Client), again.(*shopify.Client))

	rotated, err := f.open(store.Shop{Domain: "a.myshopify.com", AccessToken: "t2"})
	require.NoError(t, err)
	assert.NotSame(t, a.(*shopify.Client), rotated.(*shopify.Client))

	_, err = f.open(store.Shop{Domain: "a.myshopify.com"})
	assert.Error(t, err)
}
