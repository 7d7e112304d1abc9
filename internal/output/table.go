package output

import (
	"fmt"
	"io"
	"strings"
)

// Table renders aligned columns for text output.
type Table struct {
	headers    []string
	rows       [][]string
	rightAlign map[int]bool
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, rightAlign: make(map[int]bool)}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// AlignRight right-aligns a column; used for amounts.
func (t *Table) AlignRight(col int) {
	t.rightAlign[col] = true
}

// Render writes the header, a dashed rule and every row.
func (t *Table) Render(w io.Writer) error {
	widths := make([]int, len(t.headers))
	for _, row := range append([][]string{t.headers}, t.rows...) {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], len(cell))
		}
	}
	if len(widths) == 0 {
		return nil
	}

	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}

	lines := append([][]string{t.headers, rule}, t.rows...)
	for _, cells := range lines {
		parts := make([]string, len(widths))
		for i, n := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if t.rightAlign[i] {
				parts[i] = fmt.Sprintf("%*s", n, cell)
			} else {
				parts[i] = fmt.Sprintf("%-*s", n, cell)
			}
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}

// String returns the rendered table.
func (t *Table) String() string {
	var sb strings.Builder
	_ = t.Render(&sb)
	return sb.String()
}
