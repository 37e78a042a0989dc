package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	ListenAddr string `envconfig:"SKIM_LISTEN_ADDR" default:":8080"`

	// DatabaseURL is optional. Without it the settings store runs in memory
	// and nothing survives a restart.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	ReplyTTLSeconds         int    `envconfig:"SKIM_REPLY_TTL_SECONDS" default:"15"`
	PageFetchTimeoutSeconds int    `envconfig:"SKIM_PAGE_FETCH_TIMEOUT_SECONDS" default:"12"`
	PageBodyLimitBytes      int64  `envconfig:"SKIM_PAGE_BODY_LIMIT_BYTES" default:"2097152"`
	PageFetchUserAgent      string `envconfig:"SKIM_PAGE_USER_AGENT" default:""`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("SKIM_LISTEN_ADDR is required")
	}
	if c.ReplyTTLSeconds < 1 {
		return fmt.Errorf("SKIM_REPLY_TTL_SECONDS must be >= 1")
	}
	if c.PageFetchTimeoutSeconds < 1 {
		return fmt.Errorf("SKIM_PAGE_FETCH_TIMEOUT_SECONDS must be >= 1")
	}
	if c.PageBodyLimitBytes < 1024 {
		return fmt.Errorf("SKIM_PAGE_BODY_LIMIT_BYTES must be >= 1024")
	}
	return nil
}

// UsesDatabase reports whether a persistent settings store is configured.
func (c *Config) UsesDatabase() bool {
	return c != nil && strings.TrimSpace(c.DatabaseURL) != ""
}

func (c *Config) ReplyTTL() time.Duration {
	return time.Duration(c.ReplyTTLSeconds) * time.Second
}

func (c *Config) PageFetchTimeout() time.Duration {
	return time.Duration(c.PageFetchTimeoutSeconds) * time.Second
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
