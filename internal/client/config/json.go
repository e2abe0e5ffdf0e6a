package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/mediavault/internal/flagx"
	"github.com/dmitrijs2005/mediavault/internal/timex"
)

// JsonConfig is the on-disk form of Config.
type JsonConfig struct {
	ServerURL    string         `json:"server_url"`
	Token        string         `json:"token"`
	SecretKey    string         `json:"secret_key"`
	Timeout      timex.Duration `json:"timeout"`
	MaxFileBytes int64          `json:"max_file_bytes"`
}

func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if c.ServerURL != "" {
		config.ServerURL = c.ServerURL
	}
	if c.Token != "" {
		config.Token = c.Token
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.Timeout.Duration != 0 {
		config.Timeout = c.Timeout.Duration
	}
	if c.MaxFileBytes != 0 {
		config.MaxFileBytes = c.MaxFileBytes
	}
	return nil
}
