// Package metrics records operational metrics for imports and report
// requests behind a small, backend-agnostic interface.
//
// A global, pluggable backend defaults to a no-op, so instrumentation is
// always safe to call even when nothing is configured. Concrete systems live
// in subpackages (prompush, datadog) and are installed with SetBackend.
package metrics

import (
	"io"
	"sync"
	"time"
)

// Metric names.
const (
	StepTotal       = "taskstats_step_total"
	StepDuration    = "taskstats_step_duration_seconds"
	RecordsTotal    = "taskstats_records_total"
	ImportsTotal    = "taskstats_imports_total"
	statusSuccess   = "success"
	statusFailure   = "failure"
	statusCompleted = "completed"
	statusRejected  = "rejected"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// Close flushes the backend and releases it if it holds resources.
func Close() error {
	b := current()
	err := b.Flush()
	if c, ok := b.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// RecordStep measures latency plus success/failure of one unit of work,
// e.g. an import or a report request.
func RecordStep(job, step string, err error, d time.Duration) {
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds used by the importer:
//   - "processed"
//   - "rejected"
//   - "inserted"
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordImport counts one finished upload, completed or rejected as a batch.
func RecordImport(job string, rejected bool) {
	status := statusCompleted
	if rejected {
		status = statusRejected
	}
	current().IncCounter(ImportsTotal, 1, Labels{
		"job":    job,
		"status": status,
	})
}
