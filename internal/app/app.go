// Package app holds the start-up plumbing shared by the taskstats binaries:
// config checking, storage opening and metrics backend selection.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"taskstats/internal/config"
	"taskstats/internal/metrics"
	"taskstats/internal/metrics/datadog"
	"taskstats/internal/metrics/prompush"
	"taskstats/internal/storage"

	// register all backends with the storage factory.
	_ "taskstats/internal/storage/all"
)

// ErrInvalidConfig is returned by CheckConfig when any issue is an error.
var ErrInvalidConfig = errors.New("configuration is invalid")

// CheckConfig writes every validation issue to w and fails on errors.
func CheckConfig(cfg config.Config, w io.Writer) error {
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return ErrInvalidConfig
	}
	return nil
}

// OpenStorage opens the configured backend and, when enabled, creates the
// task table.
func OpenStorage(ctx context.Context, cfg config.Storage) (storage.Repository, error) {
	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Kind, DSN: cfg.DSN, Table: cfg.Table})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Kind, err)
	}
	if cfg.AutoMigrate {
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("storage: ensure schema: %w", err)
		}
	}
	log.Printf("storage: kind=%s table=%s auto_migrate=%t", cfg.Kind, cfg.Table, cfg.AutoMigrate)
	return repo, nil
}

// MetricsBackend builds the configured backend. It returns nil for "none"
// and for unknown names, which keeps the no-op default.
func MetricsBackend(m config.Metrics) (metrics.Backend, error) {
	switch m.Backend {
	case "prompush", "pushgateway":
		b, err := prompush.NewBackend(m.JobName, m.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		log.Printf("metrics: backend=prompush url=%s job_name=%s", m.PushgatewayURL, m.JobName)
		return b, nil
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			Namespace:  m.JobName + ".",
			GlobalTags: []string{"service:" + m.JobName},
		})
		if err != nil {
			return nil, err
		}
		log.Printf("metrics: backend=datadog addr=%s", m.DatadogAddr)
		return b, nil
	case "", "none":
		return nil, nil
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", m.Backend)
		return nil, nil
	}
}

// FlushEvery flushes metrics every interval until ctx is done. A
// non-positive interval returns immediately.
func FlushEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
		}
	}
}

// Run starts fn alongside the periodic metrics flusher and waits for both.
// The flusher stops once fn returns.
func Run(ctx context.Context, interval time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	g.Go(func() error {
		FlushEvery(gctx, interval)
		return nil
	})
	return g.Wait()
}
