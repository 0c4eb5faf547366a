// Package settings loads service configuration with viper: registered
// defaults, an optional YAML file, then PROTECTAG_* environment variables.
package settings

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/cognicore/protectag/pkg/protectag/internalerr"
)

// EnvPrefix prefixes every environment override, e.g. PROTECTAG_SERVER_ADDR.
const EnvPrefix = "PROTECTAG"

// Settings is the full service configuration.
type Settings struct {
	Server  ServerSettings  `mapstructure:"server"`
	Store   StoreSettings   `mapstructure:"store"`
	Shopify ShopifySettings `mapstructure:"shopify"`
	Catalog CatalogSettings `mapstructure:"catalog"`
	Markers MarkerSettings  `mapstructure:"markers"`
	LLM     LLMSettings     `mapstructure:"llm"`
	Rules   RulesSettings   `mapstructure:"rules"`
	Log     LogSettings     `mapstructure:"log"`
}

type ServerSettings struct {
	Addr string `mapstructure:"addr"`
}

type StoreSettings struct {
	Path          string        `mapstructure:"path"`
	RedisAddr     string        `mapstructure:"redis_addr"` // empty disables the category cache
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

type ShopifySettings struct {
	APIVersion        string        `mapstructure:"api_version"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type CatalogSettings struct {
	ProtectionVendor string `mapstructure:"protection_vendor"`
	PageSize         int    `mapstructure:"page_size"`
	ClearPageSize    int    `mapstructure:"clear_page_size"`
	HardCap          int    `mapstructure:"hard_cap"` // negative disables the cap
	ExcludeExpr      string `mapstructure:"exclude_expr"`
}

type MarkerSettings struct {
	Prefix string `mapstructure:"prefix"`
}

// LLMSettings selects the semantic classifier backend.
type LLMSettings struct {
	Provider     string        `mapstructure:"provider"` // openai, gemini or none
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	OpenAIAPIKey string        `mapstructure:"openai_api_key"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	Temperature  float64       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Key returns the explicit api_key, else the provider's conventional one.
func (l LLMSettings) Key() string {
	if l.APIKey != "" {
		return l.APIKey
	}
	switch l.Provider {
	case ProviderOpenAI:
		return l.OpenAIAPIKey
	case ProviderGemini:
		return l.GeminiAPIKey
	}
	return ""
}

type RulesSettings struct {
	Path string `mapstructure:"path"` // empty uses the embedded table
}

type LogSettings struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// SetDefaults registers a default for every key so environment overrides
// reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("store.path", "protectag.db")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.cache_ttl", 5*time.Minute)

	v.SetDefault("shopify.api_version", "2024-10")
	v.SetDefault("shopify.timeout", 30*time.Second)
	v.SetDefault("shopify.requests_per_second", 2.0)

	v.SetDefault("catalog.protection_vendor", "Protection")
	v.SetDefault("catalog.page_size", 50)
	v.SetDefault("catalog.clear_page_size", 100)
	v.SetDefault("catalog.hard_cap", 2000)
	v.SetDefault("catalog.exclude_expr", "")

	v.SetDefault("markers.prefix", "protection")

	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 15*time.Second)

	v.SetDefault("rules.path", "")

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSensitiveEnvVars(v)
	SetDefaults(v)
	return v
}

func bindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("llm.openai_api_key", EnvPrefix+"_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.gemini_api_key", EnvPrefix+"_LLM_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
}

// Load reads path when set; otherwise protectag.yaml in the working
// directory is used if present.
func Load(path string) (*Settings, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "read config %s", path), internalerr.ErrInvalidConfig)
		}
	} else {
		v.SetConfigName("protectag")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Mark(errors.Wrap(err, "read config"), internalerr.ErrInvalidConfig)
			}
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates v.
func FromViper(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "unmarshal config"), internalerr.ErrInvalidConfig)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the engine cannot run with.
func (s *Settings) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.Wrapf(internalerr.ErrInvalidConfig, format, args...)
	}
	switch s.LLM.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderNone:
	default:
		return invalid("llm.provider %q: want openai, gemini or none", s.LLM.Provider)
	}
	if s.Catalog.PageSize <= 0 || s.Catalog.PageSize > 250 {
		return invalid("catalog.page_size %d: want 1..250", s.Catalog.PageSize)
	}
	if s.Catalog.ClearPageSize <= 0 || s.Catalog.ClearPageSize > 250 {
		return invalid("catalog.clear_page_size %d: want 1..250", s.Catalog.ClearPageSize)
	}
	if strings.TrimSpace(s.Markers.Prefix) == "" {
		return invalid("markers.prefix is empty")
	}
	if s.Store.Path == "" {
		return invalid("store.path is empty")
	}
	return nil
}
