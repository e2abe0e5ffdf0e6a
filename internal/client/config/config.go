package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the mediavault CLI.
type Config struct {
	ServerURL    string
	Token        string
	SecretKey    string
	Timeout      time.Duration
	MaxFileBytes int64
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.SecretKey = "secretKey"
	c.Timeout = 2 * time.Minute
	c.MaxFileBytes = 10 << 20
}

// Load applies defaults, then the JSON file and finally the flags in args.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server url is required")
	}
	return cfg, nil
}
