// Command taskimport loads a task CSV into the configured storage with the
// same validation and all-or-nothing semantics as the upload endpoint, and
// prints the same JSON body.
//
//	taskimport -file tasks.csv
//	taskimport -file https://example.com/exports/tasks.csv
//	taskimport -file tasks.csv -dry-run -storage=mysql -dsn="user:pass@tcp(localhost:3306)/tasks"
//
// Exit status is 1 when the batch is rejected or cannot be processed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"taskstats/internal/app"
	"taskstats/internal/config"
	"taskstats/internal/importer"
	"taskstats/internal/metrics"
	"taskstats/internal/source"
)

func main() {
	var (
		file   string
		dryRun bool
	)
	flag.StringVar(&file, "file", "", "CSV file or http(s) URL to import ('-' reads stdin)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate only; do not write")

	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}
	if file == "" {
		fatalf("missing -file")
	}
	if err := app.CheckConfig(*cfg, os.Stderr); err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, *cfg, file, dryRun, os.Stdout)
	if err != nil {
		fatalf("%v", err)
	}
	if res.Failed() {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, file string, dryRun bool, out io.Writer) (importer.Result, error) {
	b, err := app.MetricsBackend(cfg.Metrics)
	if err != nil {
		log.Printf("metrics: failed to init backend: %v; using nop", err)
	}
	metrics.SetBackend(b)
	defer func() {
		if err := metrics.Close(); err != nil {
			log.Printf("metrics: close error: %v", err)
		}
	}()

	in, err := source.For(file, source.HTTPConfig{}).Open(ctx)
	if err != nil {
		return importer.Result{}, err
	}
	defer in.Close()

	repo, err := app.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return importer.Result{}, err
	}
	defer repo.Close()

	res, err := importer.New(repo, importer.WithDryRun(dryRun)).Import(ctx, in)
	if err != nil {
		return res, err
	}
	log.Printf("taskimport: id=%s fingerprint=%s file=%s status=%s", res.ID, res.Fingerprint, file, res.Status())

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return res, fmt.Errorf("write result: %w", err)
	}
	return res, nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
