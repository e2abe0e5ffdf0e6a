package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/mediavault/internal/flagx"
)

// knownFlags lists every flag parseFlags understands, in single-dash form.
var knownFlags = []string{
	"-a", "-d", "-s", "-u", "-p", "-b", "-g", "-e",
	"-log-level", "-object-store", "-public-url",
	"-redis", "-cache-ttl", "-cache-size",
	"-kafka-brokers", "-kafka-topic",
	"-max-attempts", "-call-timeout", "-concurrency", "-max-upload-bytes",
	"-retention", "-reap-interval",
}

// parseFlags overlays command-line flags onto config.
//
// Short flags:
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Durations use Go syntax ("30s", "24h"). Unknown flags in args are ignored,
// so the -c config flag can share the command line.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "debug, info, warn or error")
	fs.StringVar(&config.ObjectStoreDriver, "object-store", config.ObjectStoreDriver, "object store driver: s3, minio or memory")
	fs.StringVar(&config.S3PublicURL, "public-url", config.S3PublicURL, "public base URL of stored objects")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address; empty uses the in-process cache")
	fs.DurationVar(&config.CacheTTL, "cache-ttl", config.CacheTTL, "cache entry lifetime")
	fs.IntVar(&config.CacheSize, "cache-size", config.CacheSize, "in-process cache capacity")
	fs.StringVar(&config.KafkaBrokers, "kafka-brokers", config.KafkaBrokers, "comma separated kafka brokers; empty disables events")
	fs.StringVar(&config.KafkaTopic, "kafka-topic", config.KafkaTopic, "kafka topic for upload outcomes")
	fs.IntVar(&config.MaxAttempts, "max-attempts", config.MaxAttempts, "default upload attempts (1-5)")
	fs.DurationVar(&config.CallTimeout, "call-timeout", config.CallTimeout, "timeout of a single storage call")
	fs.IntVar(&config.UploadConcurrency, "concurrency", config.UploadConcurrency, "files processed in parallel per transaction")
	fs.Int64Var(&config.MaxUploadBytes, "max-upload-bytes", config.MaxUploadBytes, "request body limit for uploads")
	fs.DurationVar(&config.RetentionWindow, "retention", config.RetentionWindow, "how long finished transactions stay queryable")
	fs.DurationVar(&config.ReapInterval, "reap-interval", config.ReapInterval, "how often finished transactions are swept")

	return fs.Parse(args)
}
