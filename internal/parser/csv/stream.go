// Package csv reads header-keyed CSV uploads into raw records.
//
// Input is decoded before it reaches encoding/csv: a leading byte order mark
// (UTF-8 or UTF-16) selects the matching decoder and is dropped, otherwise
// the bytes must be valid UTF-8. Invalid input surfaces as an error from
// Stream, not as a row error.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"taskstats/internal/records"
)

const utf8BOM = "\uFEFF"

// RowFunc receives each data row. line is 1-based and counts data rows only;
// the header is not numbered. Returning an error stops the stream.
type RowFunc func(line int, rec records.Record) error

// NewDecoder wraps r so its bytes arrive as validated UTF-8.
func NewDecoder(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(encoding.UTF8Validator))
}

// Stream parses r and calls fn for every data row. It returns the number of
// rows delivered. Short rows leave their missing columns absent from the
// record; extra trailing columns are ignored. An empty input yields zero rows.
func Stream(ctx context.Context, r io.Reader, fn RowFunc) (int, error) {
	cr := csv.NewReader(NewDecoder(r))
	// Width is checked against the header per row, not by encoding/csv.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("csv: read header: %w", err)
	}
	header = normalizeHeader(header)

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("csv: read row %d: %w", n+1, err)
		}

		rec := make(records.Record, len(header))
		for i, h := range header {
			if i >= len(fields) {
				break
			}
			rec[h] = fields[i]
		}
		n++
		if err := fn(n, rec); err != nil {
			return n, err
		}
	}
}

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
// NewDecoder already drops it; this covers readers built without it.
func StripHeaderBOM(headers []string) []string {
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	return headers
}

func normalizeHeader(h []string) []string {
	h = StripHeaderBOM(h)
	for i := range h {
		h[i] = strings.TrimSpace(h[i])
	}
	return h
}
