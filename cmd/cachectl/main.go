// Package main implements cachectl, a command line tool for inspecting and
// maintaining a toolcache snapshot and fetching through it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/jonwraymond/toolcache/config"
)

const usageText = `usage: cachectl [-config FILE] [-json] COMMAND [ARGS]

commands:
  stats                 show cache statistics
  keys                  list cached keys, most recently used first
  get KEY               print a cached value
  set KEY VALUE         store a value (-ttl DURATION, -tags a,b)
  delete KEY            remove a key
  invalidate TAG        remove every entry carrying TAG
  sweep                 remove expired entries
  clear                 remove every entry and the snapshot
  fetch ENDPOINT [K=V]  read an API endpoint through the cache
  tools [-category C]   list known tools
  health                run health checks
  serve [-addr ADDR]    serve health and metrics endpoints`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type globalOptions struct {
	configPath string
	json       bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cachectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprintln(stderr, usageText) }

	var opts globalOptions
	fs.StringVar(&opts.configPath, "config", "", "path to a TOML or YAML config file")
	fs.BoolVar(&opts.json, "json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	name, cmdArgs := rest[0], rest[1:]

	cmd, ok := commands[name]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "cachectl: unknown command %q (want one of %s)\n", name, commandNames())
		return 2
	}

	if cmd.offline {
		return exitCode(stderr, cmd.run(ctx, &app{opts: opts}, cmdArgs, stdout))
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	a, err := newApp(ctx, cfg, opts, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	runErr := cmd.run(ctx, a, cmdArgs, stdout)
	if err := a.Close(context.WithoutCancel(ctx)); err != nil {
		_, _ = fmt.Fprintf(stderr, "cachectl: shutdown: %v\n", err)
	}
	return exitCode(stderr, runErr)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg := config.Default()
		cfg.ApplyEnv()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

// usageError marks errors caused by bad arguments.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// errNotFound reports a missing key without further output.
var errNotFound = errors.New("not found")

func exitCode(stderr io.Writer, err error) int {
	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue):
		_, _ = fmt.Fprintf(stderr, "cachectl: %v\n", err)
		return 2
	default:
		_, _ = fmt.Fprintf(stderr, "cachectl: %v\n", err)
		return 1
	}
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}
