package httpapi

import (
	"html"
	"regexp"
	"strings"
)

var (
	hruleRE = regexp.MustCompile(`^\s*[─╌╍┄┅┈┉━]{3,}\s*$`)

	// Status-bar tokens right-aligned with long space runs; collapse them.
	statusBarRE = regexp.MustCompile(`\s{3,}(\? for shortcuts|\d+% context left|shift\+tab to cycle)`)

	tableTopRE = regexp.MustCompile(`^[│┌][─┬]+[┐│]?\s*$`)
	tableSepRE = regexp.MustCompile(`^[│├][─┼]+[┤│]?\s*$`)
	tableBotRE = regexp.MustCompile(`^[│└][─┴]+[┘│]?\s*$`)
	panelTopRE = regexp.MustCompile(`^[╭┌][─]+[╮┐]\s*$`)
	panelBotRE = regexp.MustCompile(`^[╰└][─]+[╯┘]\s*$`)
	panelMidRE = regexp.MustCompile(`^│(.*)│\s*$`)
)

// terminalToHTML converts a raw captured pane into an HTML fragment,
// recognizing box-drawing tables and panels and escaping everything else.
func terminalToHTML(raw string) string {
	lines := strings.Split(raw, "\n")
	return strings.Join(convertBlocks(lines), "\n")
}

func escapeCell(text string) string {
	escaped := html.EscapeString(text)
	return strings.ReplaceAll(escaped, "_", "_<wbr>")
}

// splitTableRow splits a "│ a │ b │" style row into trimmed cells.
func splitTableRow(line string) []string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "│")
	s = strings.TrimSuffix(s, "│")
	parts := strings.Split(s, "│")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// renderTable converts a contiguous block of box-drawing table lines into an
// HTML table, treating the first non-border row as the header.
func renderTable(lines []string) string {
	var rows [][]string
	for _, line := range lines {
		s := strings.TrimSpace(line)
		if tableTopRE.MatchString(s) || tableSepRE.MatchString(s) || tableBotRE.MatchString(s) {
			continue
		}
		if strings.Contains(s, "│") {
			rows = append(rows, splitTableRow(s))
		}
	}
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<table class="terminal-table">`)
	b.WriteString("<thead><tr>")
	for _, cell := range rows[0] {
		b.WriteString("<th>")
		b.WriteString(escapeCell(cell))
		b.WriteString("</th>")
	}
	b.WriteString("</tr></thead>")
	if len(rows) > 1 {
		b.WriteString("<tbody>")
		for _, row := range rows[1:] {
			b.WriteString("<tr>")
			for _, cell := range row {
				b.WriteString("<td>")
				b.WriteString(escapeCell(cell))
				b.WriteString("</td>")
			}
			b.WriteString("</tr>")
		}
		b.WriteString("</tbody>")
	}
	b.WriteString("</table>")
	return b.String()
}

// renderPanel converts a block of "│ ... │" panel lines into an HTML div,
// feeding the inner content back through convertBlocks so nested tables and
// hrules inside a panel render correctly.
func renderPanel(lines []string) string {
	var content []string
	for _, line := range lines {
		m := panelMidRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := m[1]
		text = strings.TrimSuffix(text, " ")
		text = strings.TrimPrefix(text, " ")
		content = append(content, text)
	}
	inner := strings.Join(convertBlocks(content), "\n")
	return `<div class="terminal-panel">` + inner + `</div>`
}

func isTableTop(line string) bool {
	s := strings.TrimSpace(line)
	return tableTopRE.MatchString(s) && strings.Contains(s, "┬")
}

func isPanelTop(line string) bool {
	s := strings.TrimSpace(line)
	return panelTopRE.MatchString(s) && !strings.Contains(s, "┬")
}

// convertBlocks scans lines for box-drawing blocks (tables, panels) and
// converts them to HTML, escaping everything else. Ported line-for-line
// from the original's _convert_blocks, including its "headless panel"
// fallback for │...│ runs whose top border fell in an earlier capture.
func convertBlocks(lines []string) []string {
	var result []string
	i := 0
	for i < len(lines) {
		line := lines[i]

		if isTableTop(line) {
			block := []string{line}
			j := i + 1
			for j < len(lines) {
				block = append(block, lines[j])
				if tableBotRE.MatchString(strings.TrimSpace(lines[j])) {
					break
				}
				j++
			}
			if rendered := renderTable(block); rendered != "" {
				result = append(result, rendered)
			} else {
				for _, ln := range block {
					result = append(result, html.EscapeString(ln))
				}
			}
			i = j + 1
			continue
		}

		if isPanelTop(line) {
			block := []string{line}
			j := i + 1
			for j < len(lines) {
				block = append(block, lines[j])
				if panelBotRE.MatchString(strings.TrimSpace(lines[j])) {
					break
				}
				j++
			}
			result = append(result, renderPanel(block))
			i = j + 1
			continue
		}

		// Headless panel: │...│ lines without a top border (the top border
		// was in a previous capture's chunk).
		if panelMidRE.MatchString(line) {
			block := []string{line}
			j := i + 1
			reachedBottom := false
			for j < len(lines) {
				if panelBotRE.MatchString(strings.TrimSpace(lines[j])) {
					block = append(block, lines[j])
					reachedBottom = true
					break
				}
				if panelMidRE.MatchString(lines[j]) {
					block = append(block, lines[j])
					j++
					continue
				}
				break
			}
			if j >= len(lines) {
				j = i + len(block)
			}
			if j < len(lines) || reachedBottom {
				result = append(result, renderPanel(block))
				if reachedBottom {
					i = j + 1
				} else {
					i = j
				}
				continue
			}
			// Not a panel — fall through to plain-line handling below.
		}

		if hruleRE.MatchString(line) {
			result = append(result, `<hr class="terminal-hr">`)
		} else {
			escaped := html.EscapeString(line)
			escaped = statusBarRE.ReplaceAllString(escaped, "  $1")
			result = append(result, escaped)
		}
		i++
	}
	return result
}
