// Package source opens task CSV inputs for the import CLI: a local file,
// stdin, or an HTTP(S) URL fetched with retry.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Source yields the bytes of one CSV upload.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// For picks a Source for loc: "-" is stdin, http:// and https:// are
// fetched, anything else is a local path.
func For(loc string, hc HTTPConfig) Source {
	switch {
	case loc == "-":
		return Stdin{}
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return NewHTTP(loc, hc)
	default:
		return NewLocal(loc)
	}
}

// Local opens a file from disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open returns the context error without touching the filesystem when ctx
// is already done. Filesystem errors keep os.ErrNotExist and friends
// matchable with errors.Is.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// Stdin reads standard input. Close is a no-op.
type Stdin struct{}

func (Stdin) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(os.Stdin), nil
}
