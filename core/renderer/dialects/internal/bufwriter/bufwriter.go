// Package bufwriter is the output buffer shared by the dialect renderers.
package bufwriter

import (
	"fmt"
	"strings"
)

// Writer accumulates rendered SQL.
type Writer struct {
	b strings.Builder
}

// WriteString appends s.
func (w *Writer) WriteString(s string) {
	w.b.WriteString(s)
}

// Printf appends a formatted string.
func (w *Writer) Printf(format string, args ...any) {
	fmt.Fprintf(&w.b, format, args...)
}

// Reset clears the buffer.
func (w *Writer) Reset() {
	w.b.Reset()
}

// String returns the accumulated output.
func (w *Writer) String() string {
	return w.b.String()
}
