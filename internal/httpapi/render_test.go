package httpapi

import (
	"strings"
	"testing"
)

func TestTerminalToHTMLEscapesPlainText(t *testing.T) {
	out := terminalToHTML("hello <world>")
	if !strings.Contains(out, "&lt;world&gt;") {
		t.Errorf("expected escaped text, got %q", out)
	}
}

func TestTerminalToHTMLHRule(t *testing.T) {
	out := terminalToHTML("────────────")
	if out != `<hr class="terminal-hr">` {
		t.Errorf("got %q", out)
	}
}

func TestTerminalToHTMLTable(t *testing.T) {
	raw := strings.Join([]string{
		"┌──────┬───────┐",
		"│ name │ state │",
		"├──────┼───────┤",
		"│ foo  │ alive │",
		"└──────┴───────┘",
	}, "\n")
	out := terminalToHTML(raw)
	if !strings.Contains(out, `<table class="terminal-table">`) {
		t.Errorf("expected a table, got %q", out)
	}
	if !strings.Contains(out, "<th>name</th>") {
		t.Errorf("expected header cell, got %q", out)
	}
	if !strings.Contains(out, "<td>foo</td>") {
		t.Errorf("expected body cell, got %q", out)
	}
}

func TestTerminalToHTMLPanel(t *testing.T) {
	raw := strings.Join([]string{
		"╭──────────╮",
		"│ hi there │",
		"╰──────────╯",
	}, "\n")
	out := terminalToHTML(raw)
	if !strings.Contains(out, `<div class="terminal-panel">`) {
		t.Errorf("expected a panel div, got %q", out)
	}
	if !strings.Contains(out, "hi there") {
		t.Errorf("expected panel content, got %q", out)
	}
}

func TestTerminalToHTMLCollapsesStatusBar(t *testing.T) {
	raw := "idle" + strings.Repeat(" ", 10) + "? for shortcuts"
	out := terminalToHTML(raw)
	if strings.Contains(out, strings.Repeat(" ", 10)) {
		t.Errorf("expected long space run collapsed, got %q", out)
	}
}

func TestEscapeCellInsertsWbrAfterUnderscore(t *testing.T) {
	got := escapeCell("my_session_name")
	if !strings.Contains(got, "my_<wbr>session_<wbr>name") {
		t.Errorf("got %q", got)
	}
}
