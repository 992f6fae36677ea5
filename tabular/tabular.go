// Package tabular renders rows as a plain-text table in the "simple" layout:
// a header line, a dashed rule, then one line per row, columns separated by
// two spaces. Numeric columns are right-aligned, everything else is
// left-aligned, and nil cells render empty. Widths are terminal display
// cells, so wide runes count twice.
package tabular

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

const (
	columnGap = "  "
	// headerPad is the minimum slack added to every header's width.
	headerPad = 2
)

// Simple renders headers and rows. Rows shorter than headers are padded
// with empty cells; extra cells are ignored.
func Simple(headers []string, rows [][]any) string {
	ncol := len(headers)
	cells := make([][]string, len(rows))
	numeric := make([]bool, ncol)
	seen := make([]bool, ncol)
	for i := range numeric {
		numeric[i] = true
	}
	for r, row := range rows {
		cells[r] = make([]string, ncol)
		for c := 0; c < ncol; c++ {
			var v any
			if c < len(row) {
				v = row[c]
			}
			cells[r][c] = Cell(v)
			if v == nil {
				continue
			}
			seen[c] = true
			if !isNumber(v) {
				numeric[c] = false
			}
		}
	}

	widths := make([]int, ncol)
	for c, h := range headers {
		widths[c] = runewidth.StringWidth(h) + headerPad
		if !seen[c] {
			numeric[c] = false
		}
	}
	for _, row := range cells {
		for c, s := range row {
			if w := runewidth.StringWidth(s); w > widths[c] {
				widths[c] = w
			}
		}
	}

	var b strings.Builder
	line := make([]string, ncol)
	for c, h := range headers {
		line[c] = align(h, widths[c], numeric[c])
	}
	b.WriteString(strings.Join(line, columnGap))
	for c := range headers {
		line[c] = strings.Repeat("-", widths[c])
	}
	b.WriteByte('\n')
	b.WriteString(strings.Join(line, columnGap))
	for _, row := range cells {
		for c, s := range row {
			line[c] = align(s, widths[c], numeric[c])
		}
		b.WriteByte('\n')
		b.WriteString(strings.Join(line, columnGap))
	}
	return b.String()
}

// Cell formats a single value.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func align(s string, width int, right bool) string {
	pad := width - runewidth.StringWidth(s)
	if pad <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", pad) + s
	}
	return s + strings.Repeat(" ", pad)
}
