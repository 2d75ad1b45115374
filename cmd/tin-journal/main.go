// Command tin-journal inspects and exports the decision journal.
//
// Usage:
//
//	tin-journal list [-ticker T] [-limit N]
//	tin-journal export [-data-dir DIR]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"tin/internal/config"
	"tin/internal/store"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: tin-journal list [-ticker T] [-limit N]")
	fmt.Fprintln(w, "       tin-journal export [-data-dir DIR]")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 1
	}

	cfgPath := "config/tin.yaml"
	if p := os.Getenv("TIN_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOptional(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "loading config: %v\n", err)
		return 1
	}
	if cfg.Journal.SQLitePath == "" {
		fmt.Fprintln(stderr, "journal.sqlite_path is not configured")
		return 1
	}

	journal, err := store.NewSQLiteStore(cfg.Journal.SQLitePath)
	if err != nil {
		fmt.Fprintf(stderr, "opening journal: %v\n", err)
		return 1
	}
	defer journal.Close()

	switch args[0] {
	case "list":
		err = list(ctx, journal, args[1:], stdout)
	case "export":
		err = export(ctx, journal, cfg.Journal.DataDir, args[1:], stdout)
	default:
		usage(stderr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

// list prints matching records newest first, one JSON object per line.
func list(ctx context.Context, journal store.DecisionStore, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	ticker := fs.String("ticker", "", "only show this ticker")
	limit := fs.Int("limit", 20, "maximum records to show (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recs, err := journal.ListDecisions(ctx, *ticker, *limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// export writes the whole journal to one parquet file per UTC day.
func export(ctx context.Context, journal store.DecisionStore, dataDir string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dir := fs.String("data-dir", dataDir, "parquet output root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("no data directory (set journal.data_dir or -data-dir)")
	}

	recs, err := journal.ListDecisions(ctx, "", 0)
	if err != nil {
		return err
	}
	paths, err := store.NewParquetStore(*dir).WriteDecisions(recs)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(stdout, p)
	}
	return nil
}
