// Package importer runs CSV uploads through normalization, validation and
// in-batch deduplication, and commits the batch only when every row passed.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"taskstats/internal/metrics"
	csvparser "taskstats/internal/parser/csv"
	"taskstats/internal/records"
	"taskstats/internal/schema"
	"taskstats/internal/transformer/builtin"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

const job = "import"

// Writer persists an accepted batch. storage.Repository satisfies it.
type Writer interface {
	InsertTasks(ctx context.Context, tasks []schema.TaskRecord) (int64, error)
}

// RowError reports one rejected row. Exactly one of Fields (validation) or
// Message (duplicate key) is set. A row that repeats several keys produces
// one RowError per reason.
type RowError struct {
	Row     int
	Fields  builtin.FieldErrors
	Message string
	Data    records.Record
}

// MarshalJSON renders {"row", "errors", "data"}, where errors is either the
// field map or the duplicate message.
func (e RowError) MarshalJSON() ([]byte, error) {
	var detail any = e.Message
	if e.Fields != nil {
		detail = e.Fields
	}
	return json.Marshal(struct {
		Row    int            `json:"row"`
		Errors any            `json:"errors"`
		Data   records.Record `json:"data"`
	}{e.Row, detail, e.Data})
}

// Result summarizes one upload.
type Result struct {
	ID          string     // log correlation id
	Fingerprint string     // xxh3 of the uploaded bytes
	Rows        int        // data rows read
	Valid       int        // rows that passed validation and deduplication
	Inserted    int64      // rows actually written; persisted conflicts are not counted
	DryRun      bool       // nothing was written
	Errors      []RowError // non-empty means the batch was rejected
}

// Failed reports whether the batch was rejected.
func (r Result) Failed() bool { return len(r.Errors) > 0 }

// Status returns StatusFailed or StatusSuccess.
func (r Result) Status() string {
	if r.Failed() {
		return StatusFailed
	}
	return StatusSuccess
}

// MarshalJSON renders the response body: {"status":"failed","errors":[...]}
// or {"status":"success","inserted":N}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Status string     `json:"status"`
			Errors []RowError `json:"errors"`
		}{StatusFailed, r.Errors})
	}
	if r.DryRun {
		return json.Marshal(struct {
			Status string `json:"status"`
			Valid  int    `json:"valid"`
			DryRun bool   `json:"dry_run"`
		}{StatusSuccess, r.Valid, true})
	}
	return json.Marshal(struct {
		Status   string `json:"status"`
		Inserted int64  `json:"inserted"`
	}{StatusSuccess, r.Inserted})
}

// Importer validates and loads CSV uploads.
type Importer struct {
	w      Writer
	norm   builtin.LowerChoices
	valid  builtin.Validate
	dryRun bool
}

// Option configures an Importer.
type Option func(*Importer)

// WithDryRun validates without writing.
func WithDryRun(on bool) Option {
	return func(im *Importer) { im.dryRun = on }
}

// New returns an Importer writing to w.
func New(w Writer, opts ...Option) *Importer {
	im := &Importer{
		w:     w,
		norm:  builtin.DefaultLowerChoices,
		valid: builtin.NewValidate(),
	}
	for _, o := range opts {
		o(im)
	}
	return im
}

// Import reads a header-keyed CSV from r. Row problems are returned in
// Result.Errors and leave storage untouched. A non-nil error means the
// upload could not be processed at all (decoding, CSV syntax, storage).
func (im *Importer) Import(ctx context.Context, r io.Reader) (res Result, err error) {
	start := time.Now()
	res.ID = uuid.NewString()
	res.DryRun = im.dryRun
	defer func() { metrics.RecordStep(job, "import", err, time.Since(start)) }()

	h := xxh3.New()
	dedup := builtin.NewDeDup()
	var accepted []schema.TaskRecord

	n, err := csvparser.Stream(ctx, io.TeeReader(r, h), func(line int, rec records.Record) error {
		im.norm.Row(rec)
		task, fe := im.valid.Record(rec)
		if fe != nil {
			res.Errors = append(res.Errors, RowError{Row: line, Fields: fe, Data: rec})
			return nil
		}
		reasons := dedup.Check(task)
		for _, reason := range reasons {
			res.Errors = append(res.Errors, RowError{Row: line, Message: reason, Data: rec})
		}
		if reasons == nil {
			accepted = append(accepted, task)
		}
		return nil
	})
	res.Rows = n
	res.Fingerprint = fmt.Sprintf("%016x", h.Sum64())
	if err != nil {
		log.Printf("import: id=%s read failed after %d rows: %v", res.ID, n, err)
		return res, fmt.Errorf("import: %w", err)
	}
	res.Valid = len(accepted)
	metrics.RecordRow(job, "processed", int64(n))

	if res.Failed() {
		metrics.RecordRow(job, "rejected", int64(n-len(accepted)))
		metrics.RecordImport(job, true)
		log.Printf("import: id=%s fingerprint=%s rows=%d rejected errors=%d",
			res.ID, res.Fingerprint, n, len(res.Errors))
		return res, nil
	}
	if im.dryRun {
		log.Printf("import: id=%s fingerprint=%s rows=%d dry-run valid=%d", res.ID, res.Fingerprint, n, res.Valid)
		return res, nil
	}

	res.Inserted, err = im.w.InsertTasks(ctx, accepted)
	if err != nil {
		log.Printf("import: id=%s insert failed: %v", res.ID, err)
		return res, fmt.Errorf("import: %w", err)
	}
	metrics.RecordRow(job, "inserted", res.Inserted)
	metrics.RecordImport(job, false)
	log.Printf("import: id=%s fingerprint=%s rows=%d inserted=%d skipped=%d",
		res.ID, res.Fingerprint, n, res.Inserted, int64(len(accepted))-res.Inserted)
	return res, nil
}
