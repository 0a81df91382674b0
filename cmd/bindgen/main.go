package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/NoelVillette/visp/bindgen"
	"github.com/NoelVillette/visp/bindgen/config"
)

const usage = `usage: bindgen [options...]

Generates pybind11 bindings for every header below the configured include root.

options:
`

const usageEnv = `
environment:
  BINDGEN_CONFIG   default for -config
  BINDGEN_WORKERS  default for -workers
  Both may also be set in a .env file in the working directory.
`

type options struct {
	config  string
	out     string
	dot     string
	workers int
	quiet   bool
	stats   bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fset := flag.NewFlagSet("bindgen", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&opts.config, "config", os.Getenv("BINDGEN_CONFIG"), "config file (defaults are used if empty)")
	fset.StringVar(&opts.out, "out", "", "output directory (overrides out-dir)")
	fset.StringVar(&opts.dot, "dot", "", "write the header dependency graph to this file as graphviz DOT code")
	defWorkers := 0
	if s := os.Getenv("BINDGEN_WORKERS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("BINDGEN_WORKERS: %w", err)
		}
		defWorkers = n
	}
	fset.IntVar(&opts.workers, "workers", defWorkers, "number of headers parsed in parallel (0: one per CPU)")
	fset.BoolVar(&opts.quiet, "q", false, "only log warnings and errors")
	fset.BoolVar(&opts.stats, "stats", false, "print binding and timing stats")
	fset.Usage = func() {
		fmt.Fprint(fset.Output(), usage)
		fset.PrintDefaults()
		fmt.Fprint(fset.Output(), usageEnv)
	}
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if fset.NArg() != 0 {
		fset.Usage()
		return nil, fmt.Errorf("unexpected arguments: %v", fset.Args())
	}
	return opts, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	var cfg *config.Config
	if opts.config != "" {
		var err error
		cfg, err = config.LoadWithDefaults(opts.config)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	if opts.out != "" {
		cfg.OutDir = opts.out
	}
	if opts.workers != 0 {
		cfg.Workers = opts.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// A missing .env file is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := &bindgen.Logger{Writer: stderr, Prefix: "bindgen"}
	if opts.quiet {
		logger.MinLevel = bindgen.WARN
	}
	g := &bindgen.Generator{
		Config:  cfg,
		Logger:  logger,
		DOTFile: opts.dot,
	}
	st, err := g.Run(ctx)
	if err != nil {
		return err
	}
	if opts.stats {
		st.Render(stdout)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		if s, ok := err.(fmt.Stringer); ok {
			fmt.Fprintln(os.Stderr, s.String())
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
