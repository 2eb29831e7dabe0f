// Package console prints consumed records.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/telepair/webcheck/internal/record"
)

// Writer prints every record on its own line.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// New returns a writer printing to out, or to stdout when out is nil.
func New(out io.Writer) *Writer {
	if out == nil {
		out = os.Stdout
	}
	return &Writer{out: out}
}

func (w *Writer) Name() string { return "console" }

// Write prints rec in its wire form.
func (w *Writer) Write(_ context.Context, rec record.Record) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.out, "console writer: %s\n", rec); err != nil {
		return 0, fmt.Errorf("console write: %w", err)
	}
	return 1, nil
}
