package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/mediavault/internal/flagx"
)

var knownFlags = []string{"-a", "-t", "-s", "-timeout", "-max-file-bytes"}

// parseFlags overlays the client flags found in args onto config. Anything
// else in args (the command and its own flags) is ignored.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.ServerURL, "a", config.ServerURL, "base URL of the API")
	fs.StringVar(&config.Token, "t", config.Token, "bearer token")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key for the token command")
	fs.DurationVar(&config.Timeout, "timeout", config.Timeout, "request timeout")
	fs.Int64Var(&config.MaxFileBytes, "max-file-bytes", config.MaxFileBytes, "largest file the client reads")

	return fs.Parse(flagx.FilterArgs(args, knownFlags))
}
