package client

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/client/config"
	"github.com/dmitrijs2005/mediavault/internal/filex"
	"github.com/dmitrijs2005/mediavault/internal/server/auth"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

const usage = `usage: mvcli [-a url] [-t token] [-c config.json] <command> [args]

commands:
  upload -category <avatar|gallery|verification> [-max-attempts n] <file|dir>...
  status <transaction id>
  images [-category c]
  stats
  token -user <id> [-ttl 24h]`

// Run executes one command line. Global flags come before the command.
func Run(ctx context.Context, args []string, stdout io.Writer) error {
	global, cmd, rest := splitCommand(args)
	if cmd == "" || cmd == "help" {
		_, _ = fmt.Fprintln(stdout, usage)
		return nil
	}

	cfg, err := config.Load(global)
	if err != nil {
		return err
	}
	c := New(cfg.ServerURL, cfg.Token, cfg.Timeout)

	switch cmd {
	case "upload":
		return runUpload(ctx, c, cfg, rest, stdout)
	case "status":
		if len(rest) != 1 {
			return fmt.Errorf("status takes exactly one transaction id")
		}
		st, err := c.Status(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(stdout, st)
	case "images":
		fs := newFlagSet("images")
		category := fs.String("category", "", "filter by category")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		items, err := c.Images(ctx, models.Category(*category))
		if err != nil {
			return err
		}
		return printJSON(stdout, items)
	case "stats":
		st, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, st)
	case "token":
		return runToken(cfg, rest, stdout)
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func runUpload(ctx context.Context, c *Client, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := newFlagSet("upload")
	category := fs.String("category", "", "image category")
	maxAttempts := fs.Int("max-attempts", 0, "attempts before giving up; 0 uses the server default")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cat, err := models.ParseCategory(*category)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no files given")
	}
	files, err := filex.ReadFiles(fs.Args(), cfg.MaxFileBytes)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no non-empty files found")
	}

	res, err := c.Upload(ctx, cat, *maxAttempts, files)
	if res != nil {
		if perr := printJSON(stdout, res); perr != nil {
			return perr
		}
	}
	return err
}

func runToken(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := newFlagSet("token")
	user := fs.String("user", "", "user id to embed")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("-user is required")
	}
	tok, err := auth.GenerateToken(*user, []byte(cfg.SecretKey), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, tok)
	return err
}

// splitCommand separates leading global flags from the command and its
// arguments. Every global flag takes a value.
func splitCommand(args []string) (global []string, cmd string, rest []string) {
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "-") {
		if strings.Contains(args[i], "=") {
			i++
		} else {
			i += 2
		}
	}
	if i >= len(args) {
		return args, "", nil
	}
	return args[:i], args[i], args[i+1:]
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
