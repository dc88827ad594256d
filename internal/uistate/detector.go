// Package uistate detects which of three UI states a captured Claude Code
// or Codex terminal pane is in: working (agent is busy), selection (a
// numbered option list is waiting for a choice), or prompt (idle, waiting
// for free-form input). Detection is a pure function over the captured
// text — no I/O, no knowledge of tmux or any particular agent process.
package uistate

import (
	"regexp"
	"strconv"
	"strings"
)

// itemRE matches numbered list items, with an optional › or ❯ marker.
var itemRE = regexp.MustCompile(`^(\s*[›❯]?\s*)(\d+)\.\s+(.+)$`)

// hruleRE matches a horizontal rule made of box-drawing characters.
var hruleRE = regexp.MustCompile(`^[\s]*[─╌╍┄┅┈┉━]{3,}[\s]*$`)

// footerRE matches the navigation footer confirming a selection prompt, e.g.
// "Enter to select · ↑/↓ to navigate · Esc to cancel", or the Codex
// single-line variant "Press enter to continue".
var footerRE = regexp.MustCompile(`(?i)(Enter to (select|confirm)|Esc to cancel).*(Esc to cancel|Tab to amend|↑/↓)|Press enter to continue`)

// freeformHint is the label fragment Claude Code uses for free-input options.
const freeformHint = "type something"

// spinnerChars are the glyphs captured empirically from Claude Code status
// lines (see the capture_spinners tooling this was ported from). It is an
// unexported package-level var; spinnerRE is compiled from it once at
// package initialization, so changing it afterwards does not affect
// matching.
var spinnerChars = "·⏺✢✳✶✻✽"

// spinnerRE matches a status line: spinner char, space, text ending in "…".
// Examples: "✳ Moonwalking…", "⏺ Reading 1 file…".
var spinnerRE = regexp.MustCompile(`^\s*[` + spinnerChars + `]\s+.*\x{2026}`)

// codexWorkingRE matches Codex's working line: "• Working (0s • esc to interrupt)".
var codexWorkingRE = regexp.MustCompile(`^\s*•\s+.*\(\d+s\s*•\s*esc to interrupt\)`)

// surveyRE matches the quality survey: "1: Bad  2: Fine  3: Good  0: Dismiss".
var surveyRE = regexp.MustCompile(`(?i)\d:\s*Good\s+0:\s*Dismiss`)

// chromeRE matches agent chrome lines at the bottom of the pane that should
// be stripped before proximity checks, alongside blank lines.
var chromeRE = regexp.MustCompile(`(?i)\?\s+for\s+shortcuts|\d+%\s+context left|shift\+tab to cycle|^\s*[›❯]\s+\S`)

// bottomLines is how many lines from the bottom to search for spinner/perf.
const bottomLines = 5

// Parse detects the UI state from raw captured terminal text.
//
// Detection priority:
//  1. Working — spinner line near the bottom
//  2. Selection — numbered list + navigation footer or question
//  3. Prompt — default fallback
func Parse(raw string) ParsedOutput {
	lines := strings.Split(raw, "\n")

	// Strip trailing blank lines and agent status-bar chrome so position
	// checks use the actual content bottom.
	for len(lines) > 0 {
		last := lines[len(lines)-1]
		if strings.TrimSpace(last) == "" || chromeRE.MatchString(last) {
			lines = lines[:len(lines)-1]
			continue
		}
		break
	}

	if working, ok := tryWorking(lines); ok {
		return working
	}
	if selection, ok := trySelection(lines); ok {
		return selection
	}
	return ParsedOutput{State: Prompt}
}

// tryWorking detects the working state from a spinner line near the bottom.
// It also detects the quality-survey prompt and sets AutoResponse so the
// caller can auto-dismiss it.
func tryWorking(lines []string) (ParsedOutput, bool) {
	if len(lines) == 0 {
		return ParsedOutput{}, false
	}
	start := len(lines) - bottomLines
	if start < 0 {
		start = 0
	}
	tail := lines[start:]

	for _, line := range tail {
		if surveyRE.MatchString(line) {
			return ParsedOutput{State: Working, AutoResponse: "0"}, true
		}
	}

	for _, line := range tail {
		if spinnerRE.MatchString(line) || codexWorkingRE.MatchString(line) {
			return ParsedOutput{State: Working}, true
		}
	}

	return ParsedOutput{}, false
}

type foundItem struct {
	line   int
	label  string
	marker bool
}

// trySelection tries to parse a numbered selection list.
//
// Scans bottom-up so stale selections above the current one are never
// reached. Requires:
//   - 2+ consecutive items numbered 1..N
//   - bottom-most item within 5 lines of content end
//   - either the navigation footer OR a question header immediately above
func trySelection(lines []string) (ParsedOutput, bool) {
	n := len(lines)
	if n == 0 {
		return ParsedOutput{}, false
	}

	// --- Phase 1: bottom-up scan for numbered items ---
	found := make(map[int]foundItem)
	sawBottomItem := false
	i := n - 1

	// Skip footer lines at the very bottom.
	for i >= 0 {
		line := lines[i]
		if strings.TrimSpace(line) == "" || footerRE.MatchString(line) {
			i--
			continue
		}
		break
	}

	prevItemLine := -1
	for i >= 0 {
		line := lines[i]
		if m := itemRE.FindStringSubmatch(line); m != nil {
			num, err := strconv.Atoi(m[2])
			if err != nil {
				i--
				continue
			}
			label := strings.TrimSpace(m[3])
			prefix := m[1]
			marker := strings.Contains(prefix, "›") || strings.Contains(prefix, "❯")

			if !sawBottomItem {
				// First item from bottom — must be near the end.
				if i < n-5 {
					return ParsedOutput{}, false
				}
				sawBottomItem = true
			}

			// Gap check: each item must be within 3 lines of the
			// previous (lower) item.
			if prevItemLine != -1 {
				gap := prevItemLine - i
				if gap > 3 {
					break
				}
			}

			found[num] = foundItem{line: i, label: label, marker: marker}
			prevItemLine = i

			if num == 1 {
				break
			}
		}
		// Footer, blank, hrule, and description (four-space-indented)
		// lines between items are silently skipped; anything else is
		// tolerated too since the gap check above bounds how far we
		// can drift from the last found item.
		i--
	}

	// Must have found item 1 and at least 2 items.
	if _, ok := found[1]; !ok || len(found) < 2 {
		return ParsedOutput{}, false
	}

	maxNum := 0
	for num := range found {
		if num > maxNum {
			maxNum = num
		}
	}

	items := make([]SelectionItem, 0, maxNum)
	itemLines := make([]int, 0, maxNum)
	selectedIndex := 0
	hasMarker := false

	for num := 1; num <= maxNum; num++ {
		fi, ok := found[num]
		if !ok {
			return ParsedOutput{}, false // gap in numbering
		}
		items = append(items, SelectionItem{Number: num, Label: fi.label})
		itemLines = append(itemLines, fi.line)
		if fi.marker {
			selectedIndex = len(items) - 1
			hasMarker = true
		}
	}

	// --- Phase 2: forward pass for descriptions ---
	for pos := range items {
		start := itemLines[pos] + 1
		end := n
		if pos+1 < len(items) {
			end = itemLines[pos+1]
		}
		for j := start; j < end; j++ {
			line := lines[j]
			if itemRE.MatchString(line) || footerRE.MatchString(line) {
				break
			}
			if hruleRE.MatchString(line) || strings.TrimSpace(line) == "" {
				continue
			}
			if strings.HasPrefix(line, "    ") {
				desc := strings.TrimSpace(line)
				if items[pos].Description != "" {
					items[pos].Description += " " + desc
				} else {
					items[pos].Description = desc
				}
			}
		}
	}

	// --- Phase 3: validation gates ---
	hasFooter := false
	for _, ln := range lines {
		if footerRE.MatchString(ln) {
			hasFooter = true
			break
		}
	}

	hasQuestion := false
	firstIdx := itemLines[0]
	lowerBound := firstIdx - 3
	if lowerBound < -1 {
		lowerBound = -1
	}
	for k := firstIdx - 1; k > lowerBound; k-- {
		line := strings.TrimSpace(lines[k])
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "?") || strings.HasSuffix(line, ":") {
			hasQuestion = true
			break
		}
	}

	if !hasFooter && !hasQuestion {
		return ParsedOutput{}, false
	}

	if !hasMarker {
		selectedIndex = 0
	}

	for idx := range items {
		if strings.Contains(strings.ToLower(items[idx].Label), freeformHint) {
			items[idx].IsFreeform = true
		}
	}

	// Extract question text above the first item.
	var questionLines []string
	firstItemIdx := itemLines[0]
	for k := firstItemIdx - 1; k >= 0; k-- {
		line := strings.TrimSpace(lines[k])
		if line == "" || hruleRE.MatchString(lines[k]) {
			break
		}
		questionLines = append([]string{line}, questionLines...)
	}

	return ParsedOutput{
		State:          Selection,
		Items:          items,
		SelectedIndex:  selectedIndex,
		ArrowNavigable: hasMarker,
		Question:       strings.Join(questionLines, " "),
	}, true
}
