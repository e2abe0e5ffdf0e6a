// Package config loads runtime configuration for the mediavault command line
// client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config (or $MEDIAVAULT_CONFIG).
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string         base URL of the mediavault HTTP API
//	-t string         bearer token sent with every request
//	-s string         HMAC secret used by the token command
//	-timeout duration per-request timeout
//	-max-file-bytes   largest single file the client will read
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "token": "...",
//	  "secret_key": "...",
//	  "timeout": "2m",
//	  "max_file_bytes": 10485760
//	}
package config
