package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider defines configuration for one LLM provider.
type Provider struct {
	APIKey   string `json:"apiKey"`
	Disabled bool   `json:"disabled"`
}

// StoreConfig defines access to the remote verification-code store.
type StoreConfig struct {
	// Connection is the Edge Config connection string; the ecfg_ id is
	// extracted from it.
	Connection string `json:"connection"`
	APIToken   string `json:"apiToken"`
}

// RateLimitConfig defines the verification endpoint's admission policy.
type RateLimitConfig struct {
	MaxRequests   int           `json:"maxRequests"`
	WindowSeconds int           `json:"windowSeconds"`
	Window        time.Duration `json:"-"`
}

// Config is the process-wide configuration.
type Config struct {
	Port        int    `json:"port"`
	DataDir     string `json:"dataDir"`
	AdminSecret string `json:"adminSecret"`

	Store     StoreConfig         `json:"store"`
	RateLimit RateLimitConfig     `json:"rateLimit"`
	Providers map[string]Provider `json:"providers"`

	Debug bool `json:"debug"`
}

// Load reads configuration with the standard precedence: defaults, then
// an optional config file, then CHATGATE_* environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 47800)
	v.SetDefault("dataDir", defaultDataDir())
	v.SetDefault("rateLimit.maxRequests", 5)
	v.SetDefault("rateLimit.windowSeconds", 60)
	v.SetDefault("debug", false)

	v.SetEnvPrefix("CHATGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets follow the deployment's conventional variable names.
	v.BindEnv("adminSecret", "ADMIN_SECRET")
	v.BindEnv("store.connection", "EDGE_CONFIG")
	v.BindEnv("store.apiToken", "VERCEL_API_TOKEN")
	v.BindEnv("providers.gemini.apiKey", "GEMINI_API_KEY")
	v.BindEnv("providers.groq.apiKey", "GROQ_API_KEY")
	v.BindEnv("providers.qwen.apiKey", "HF_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("chatgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultDataDir())
		if err := v.ReadInConfig(); err != nil {
			// A missing config file is fine; env and defaults carry it.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]Provider)
	}
	cfg.RateLimit.Window = time.Duration(cfg.RateLimit.WindowSeconds) * time.Second

	return &cfg, nil
}

// ProviderKey returns the configured fallback API key for a provider,
// or "" if none is set.
func (c *Config) ProviderKey(provider string) string {
	p, ok := c.Providers[provider]
	if !ok || p.Disabled {
		return ""
	}
	return p.APIKey
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatgate"
	}
	return filepath.Join(home, ".chatgate")
}
