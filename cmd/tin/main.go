// Command tin decides whether to buy, sell or hold a ticker from its price
// movement and submits the order to the configured brokerage.
//
// Usage:
//
//	tin [--base-url URL] [--credentials-file FILE] [--dry-run] <ticker>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"tin/internal/broker"
	"tin/internal/config"
	"tin/internal/engine"
	"tin/internal/quote"
	"tin/internal/store"
	"tin/internal/util"
)

const version = "1.0.0"

const usageText = `Usage: tin [options] <ticker>

Options:
  -b, --base-url URL           trading-post base URL (default: %s)
  -c, --credentials-file FILE  credentials JSON file (default: %s)
      --dry-run                decide without submitting an order
  -h, --help                   print this help
  -v, --version                print the version

Environment:
  TIN_CONFIG                   config file (default: config/tin.yaml)
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one decision cycle and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfgPath := "config/tin.yaml"
	if p := os.Getenv("TIN_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOptional(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "loading config: %v\n", err)
		return 1
	}

	usage := func(msg string) {
		fmt.Fprintf(stderr, usageText, cfg.TradingPost.BaseURL, cfg.TradingPost.CredentialsFile)
		if msg != "" {
			fmt.Fprintf(stderr, "\n  %s\n\n", msg)
		}
	}

	fs := flag.NewFlagSet("tin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		baseURL, credsFile string
		showHelp, showVer  bool
		dryRun             bool
	)
	fs.StringVar(&baseURL, "base-url", "", "")
	fs.StringVar(&baseURL, "b", "", "")
	fs.StringVar(&credsFile, "credentials-file", "", "")
	fs.StringVar(&credsFile, "c", "", "")
	fs.BoolVar(&showHelp, "help", false, "")
	fs.BoolVar(&showHelp, "h", false, "")
	fs.BoolVar(&showVer, "version", false, "")
	fs.BoolVar(&showVer, "v", false, "")
	fs.BoolVar(&dryRun, "dry-run", false, "")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		usage(err.Error())
		return 1
	}

	switch {
	case showHelp:
		usage("")
		return 0
	case showVer:
		fmt.Fprintln(stdout, version)
		return 0
	}

	if len(positional) == 0 || positional[0] == "" {
		usage("Missing a <ticker>")
		return 1
	}
	if len(positional) > 1 {
		usage(fmt.Sprintf("Unexpected arguments after <ticker>: %v", positional[1:]))
		return 1
	}
	ticker := positional[0]

	if baseURL != "" {
		cfg.TradingPost.BaseURL = baseURL
	}
	if credsFile != "" {
		cfg.TradingPost.CredentialsFile = credsFile
	}
	if dryRun {
		cfg.Broker.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 1
	}

	logger := util.NewLogger(stderr, cfg.Logging.Level, cfg.Logging.Format)

	b, err := broker.FromConfig(cfg, logger)
	if err != nil {
		var ce *broker.CredentialsError
		if errors.Is(err, broker.ErrNoCredentialsFile) || errors.As(err, &ce) {
			usage(err.Error())
		} else {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	src, err := quote.FromConfig(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	opts := []engine.Option{engine.WithLogger(logger), engine.WithDryRun(cfg.Broker.DryRun)}
	if cfg.Journal.SQLitePath != "" {
		journal, err := store.NewSQLiteStore(cfg.Journal.SQLitePath)
		if err != nil {
			fmt.Fprintf(stderr, "opening journal: %v\n", err)
			return 1
		}
		defer journal.Close()
		opts = append(opts, engine.WithJournal(journal))
	}

	res, err := engine.NewEngine(b, src, opts...).Run(ctx, ticker)
	if err != nil {
		logger.Error("run failed", "ticker", ticker, "error", err)
		return 1
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

// parseInterspersed parses flags appearing before and after positional
// arguments and returns the positionals in order. Everything after "--" is
// positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		// Parse consumes a "--" terminator; detect it from what was left.
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}
