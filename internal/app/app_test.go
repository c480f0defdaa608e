package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskstats/internal/config"
	"taskstats/internal/metrics/datadog"
	"taskstats/internal/metrics/prompush"
)

func TestCheckConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CheckConfig(config.Defaults(), &buf))
	assert.Empty(t, buf.String())

	cfg := config.Defaults()
	cfg.Storage.DSN = ""
	cfg.Storage.Kind = "oracle"
	err := CheckConfig(cfg, &buf)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, buf.String(), "error: storage.dsn:")
	assert.Contains(t, buf.String(), "warning: storage.kind:")
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenStorage(ctx, config.Storage{Kind: "sqlite", DSN: ":memory:", AutoMigrate: true})
	require.NoError(t, err)
	defer repo.Close()

	tasks, err := repo.ListTasks(ctx)
	require.NoError(t, err, "table should exist after auto-migrate")
	assert.Empty(t, tasks)

	_, err = OpenStorage(ctx, config.Storage{Kind: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestMetricsBackend(t *testing.T) {
	b, err := MetricsBackend(config.Metrics{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = MetricsBackend(config.Metrics{Backend: "statsite"})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = MetricsBackend(config.Metrics{Backend: "prompush", JobName: "t", PushgatewayURL: "http://127.0.0.1:9091"})
	require.NoError(t, err)
	assert.IsType(t, &prompush.Backend{}, b)

	_, err = MetricsBackend(config.Metrics{Backend: "prompush"})
	assert.Error(t, err, "pushgateway URL is required")

	b, err = MetricsBackend(config.Metrics{Backend: "datadog", JobName: "t", DatadogAddr: "127.0.0.1:8125"})
	require.NoError(t, err)
	require.IsType(t, &datadog.Backend{}, b)
	_ = b.(*datadog.Backend).Close()
}

func TestRun_StopsFlusherWhenDone(t *testing.T) {
	err := Run(context.Background(), time.Millisecond, func(ctx context.Context) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	assert.NoError(t, err)

	boom := errors.New("boom")
	err = Run(context.Background(), time.Millisecond, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRun_CancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var saw atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, 0, func(ctx context.Context) error {
			<-ctx.Done()
			saw.Store(true)
			return nil
		})
	}()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.True(t, saw.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMetricsBackend_PrompushFlush(t *testing.T) {
	var pushes atomic.Int32
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	b, err := MetricsBackend(config.Metrics{Backend: "prompush", JobName: "t", PushgatewayURL: gw.URL})
	require.NoError(t, err)
	require.NoError(t, b.Flush())
	assert.GreaterOrEqual(t, pushes.Load(), int32(1))
}
