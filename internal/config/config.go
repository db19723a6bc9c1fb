// Package config loads packmint's runtime configuration from a YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration of the service.
type Config struct {
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	HTTPRateLimit  int      `yaml:"http_rate_limit"`

	Chain  ChainConfig  `yaml:"chain"`
	Sale   SaleConfig   `yaml:"sale"`
	Assets AssetsConfig `yaml:"assets"`
	Social SocialConfig `yaml:"social"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ChainConfig points at the EVM node and the deployed contracts.
type ChainConfig struct {
	RPCURL            string  `yaml:"rpc_url"`
	TokenAddress      string  `yaml:"token_address"`
	PackAddress       string  `yaml:"pack_address"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	FeedWindow        uint64  `yaml:"feed_window"`
}

// SaleConfig prices the packs.
type SaleConfig struct {
	UnitPrice     string `yaml:"unit_price"`
	TokenDecimals uint   `yaml:"token_decimals"`
}

// AssetsConfig locates the collection's artwork.
type AssetsConfig struct {
	CollectionCID string   `yaml:"collection_cid"`
	TotalArtCount int      `yaml:"total_art_count"`
	Gateways      []string `yaml:"gateways"`
}

// SocialConfig configures the social graph integration.
type SocialConfig struct {
	SampleEndpoint string `yaml:"sample_endpoint"`
	SigningKey     string `yaml:"signing_key"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() *Config {
	return &Config{
		Listen:         ":8080",
		AllowedOrigins: []string{"*"},
		Chain: ChainConfig{
			RequestsPerSecond: 10,
			FeedWindow:        1000,
		},
		Sale: SaleConfig{
			UnitPrice:     "0.3",
			TokenDecimals: 6,
		},
		Assets: AssetsConfig{
			TotalArtCount: 117,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads config/packmint.yaml when present, then applies
// environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFromPath(filepath.Join("config", "packmint.yaml"))
}

// LoadFromPath loads configuration from a specific file, then applies
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Listen, "PACKMINT_LISTEN")
	setString(&c.Chain.RPCURL, "PACKMINT_RPC_URL")
	setString(&c.Chain.TokenAddress, "PACKMINT_TOKEN_ADDRESS")
	setString(&c.Chain.PackAddress, "PACKMINT_PACK_ADDRESS")
	setUint64(&c.Chain.FeedWindow, "PACKMINT_FEED_WINDOW")
	setString(&c.Sale.UnitPrice, "PACKMINT_UNIT_PRICE")
	setString(&c.Assets.CollectionCID, "PACKMINT_COLLECTION_CID")
	setInt(&c.Assets.TotalArtCount, "PACKMINT_TOTAL_ART_COUNT")
	setString(&c.Social.SampleEndpoint, "PACKMINT_SOCIAL_ENDPOINT")
	setString(&c.Social.SigningKey, "PACKMINT_SOCIAL_SIGNING_KEY")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.LogLevel, "PACKMINT_LOG_LEVEL")
	setString(&c.LogFormat, "PACKMINT_LOG_FORMAT")

	if raw := strings.TrimSpace(os.Getenv("PACKMINT_GATEWAYS")); raw != "" {
		var gateways []string
		for _, g := range strings.Split(raw, ",") {
			if g = strings.TrimSpace(g); g != "" {
				gateways = append(gateways, g)
			}
		}
		if len(gateways) > 0 {
			c.Assets.Gateways = gateways
		}
	}
}

func (c *Config) validate() error {
	if c.Sale.UnitPrice == "" {
		return fmt.Errorf("sale unit price is required")
	}
	if c.Assets.TotalArtCount <= 0 {
		return fmt.Errorf("total art count must be positive")
	}
	return nil
}

// BaseLocator returns the content locator prefix derived from the
// collection CID, for example "ipfs://<cid>/".
func (c *Config) BaseLocator() string {
	cid := strings.TrimSpace(c.Assets.CollectionCID)
	if cid == "" {
		return ""
	}
	return "ipfs://" + strings.TrimSuffix(cid, "/") + "/"
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
