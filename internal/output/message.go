package output

import (
	"fmt"
	"io"
)

// Warnf writes a warning line to w.
func Warnf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "warning: "+format+"\n", args...)
}

// Successf writes a success line to w.
func Successf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "ok: "+format+"\n", args...)
}
