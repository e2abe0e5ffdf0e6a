package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/mediavault/internal/flagx"
	"github.com/dmitrijs2005/mediavault/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept "30s" style
// strings or integer nanoseconds. Absent fields keep their current value.
type JsonConfig struct {
	HTTPAddr          string         `json:"http_addr"`
	DatabaseDSN       string         `json:"database_dsn"`
	SecretKey         string         `json:"secret_key"`
	LogLevel          string         `json:"log_level"`
	ObjectStoreDriver string         `json:"object_store_driver"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3PublicURL       string         `json:"s3_public_url"`
	RedisAddr         string         `json:"redis_addr"`
	CacheTTL          timex.Duration `json:"cache_ttl"`
	CacheSize         int            `json:"cache_size"`
	KafkaBrokers      string         `json:"kafka_brokers"`
	KafkaTopic        string         `json:"kafka_topic"`
	MaxAttempts       int            `json:"max_attempts"`
	CallTimeout       timex.Duration `json:"call_timeout"`
	RetentionWindow   timex.Duration `json:"retention_window"`
	ReapInterval      timex.Duration `json:"reap_interval"`
	UploadConcurrency int            `json:"upload_concurrency"`
	MaxUploadBytes    int64          `json:"max_upload_bytes"`
}

// parseJson overlays the JSON file named by -c/-config (or
// $MEDIAVAULT_CONFIG) onto config. No file configured is not an error.
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

	setNonZero(&config.HTTPAddr, c.HTTPAddr)
	setNonZero(&config.DatabaseDSN, c.DatabaseDSN)
	setNonZero(&config.SecretKey, c.SecretKey)
	setNonZero(&config.LogLevel, c.LogLevel)
	setNonZero(&config.ObjectStoreDriver, c.ObjectStoreDriver)
	setNonZero(&config.S3RootUser, c.S3RootUser)
	setNonZero(&config.S3RootPassword, c.S3RootPassword)
	setNonZero(&config.S3Bucket, c.S3Bucket)
	setNonZero(&config.S3Region, c.S3Region)
	setNonZero(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setNonZero(&config.S3PublicURL, c.S3PublicURL)
	setNonZero(&config.RedisAddr, c.RedisAddr)
	setNonZero(&config.KafkaBrokers, c.KafkaBrokers)
	setNonZero(&config.KafkaTopic, c.KafkaTopic)

	setNonZero(&config.CacheTTL, c.CacheTTL.Duration)
	setNonZero(&config.CallTimeout, c.CallTimeout.Duration)
	setNonZero(&config.RetentionWindow, c.RetentionWindow.Duration)
	setNonZero(&config.ReapInterval, c.ReapInterval.Duration)
	setNonZero(&config.CacheSize, c.CacheSize)
	setNonZero(&config.MaxAttempts, c.MaxAttempts)
	setNonZero(&config.UploadConcurrency, c.UploadConcurrency)
	setNonZero(&config.MaxUploadBytes, c.MaxUploadBytes)
	return nil
}

func setNonZero[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
