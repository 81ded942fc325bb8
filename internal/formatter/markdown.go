// Package formatter renders aligned markdown tables for reports.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

type alignment int

const (
	alignNone alignment = iota
	alignLeft
	alignRight
	alignCenter
)

// FormatMarkdown re-pads every pipe table in content so columns line up by
// display width. Everything outside tables is passed through.
func FormatMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))

	var table []string

	flush := func() {
		if len(table) > 0 {
			out = append(out, alignTable(table)...)
			table = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") && len(trimmed) > 1 {
			table = append(table, trimmed)
			continue
		}

		flush()
		out = append(out, line)
	}

	flush()

	return strings.Join(out, "\n")
}

// Table builds an aligned markdown table from a header and rows. Pipes and
// newlines inside cells are escaped.
func Table(header []string, rows [][]string) string {
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, joinRow(header))

	seps := make([]string, len(header))
	for i := range seps {
		seps[i] = "---"
	}
	lines = append(lines, joinRow(seps))

	for _, row := range rows {
		lines = append(lines, joinRow(row))
	}

	return strings.Join(alignTable(lines), "\n")
}

// Truncate shortens s to at most width display columns, marking the cut
// with an ellipsis.
func Truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

func joinRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		escaped[i] = strings.Join(strings.Fields(c), " ")
	}

	return "| " + strings.Join(escaped, " | ") + " |"
}

// splitRow splits a table row on unescaped pipes.
func splitRow(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	if strings.HasSuffix(row, "|") && !strings.HasSuffix(row, `\|`) {
		row = row[:len(row)-1]
	}

	var (
		cells []string
		cur   strings.Builder
	)

	for i := 0; i < len(row); i++ {
		switch {
		case row[i] == '\\' && i+1 < len(row) && row[i+1] == '|':
			cur.WriteString(`\|`)
			i++
		case row[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(row[i])
		}
	}

	return append(cells, strings.TrimSpace(cur.String()))
}

func parseSeparator(cells []string) ([]alignment, bool) {
	aligns := make([]alignment, len(cells))

	for i, c := range cells {
		c = strings.ReplaceAll(c, " ", "")
		if strings.Trim(c, ":-") != "" || !strings.Contains(c, "-") {
			return nil, false
		}

		left := strings.HasPrefix(c, ":")
		right := strings.HasSuffix(c, ":")

		switch {
		case left && right:
			aligns[i] = alignCenter
		case right:
			aligns[i] = alignRight
		case left:
			aligns[i] = alignLeft
		}
	}

	return aligns, true
}

func alignTable(rows []string) []string {
	if len(rows) < 2 {
		return rows
	}

	cells := make([][]string, len(rows))
	cols := 0

	for i, r := range rows {
		cells[i] = splitRow(r)
		if len(cells[i]) > cols {
			cols = len(cells[i])
		}
	}

	aligns, ok := parseSeparator(cells[1])
	if !ok {
		return rows
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = 3
	}

	for i, row := range cells {
		if i == 1 {
			continue
		}

		for j, c := range row {
			if w := runewidth.StringWidth(c); w > widths[j] {
				widths[j] = w
			}
		}
	}

	out := make([]string, len(rows))

	for i, row := range cells {
		var sb strings.Builder
		sb.WriteString("|")

		for j := 0; j < cols; j++ {
			a := alignNone
			if j < len(aligns) {
				a = aligns[j]
			}

			sb.WriteString(" ")

			if i == 1 {
				sb.WriteString(separator(widths[j], a))
			} else {
				c := ""
				if j < len(row) {
					c = row[j]
				}

				sb.WriteString(pad(c, widths[j], a))
			}

			sb.WriteString(" |")
		}

		out[i] = sb.String()
	}

	return out
}

func separator(width int, a alignment) string {
	switch a {
	case alignLeft:
		return ":" + strings.Repeat("-", width-1)
	case alignRight:
		return strings.Repeat("-", width-1) + ":"
	case alignCenter:
		return ":" + strings.Repeat("-", width-2) + ":"
	default:
		return strings.Repeat("-", width)
	}
}

func pad(s string, width int, a alignment) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}

	switch a {
	case alignRight:
		return strings.Repeat(" ", gap) + s
	case alignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	default:
		return s + strings.Repeat(" ", gap)
	}
}
