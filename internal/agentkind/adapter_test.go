package agentkind

import (
	"strings"
	"testing"
)

func TestExpandShortcutCaseInsensitive(t *testing.T) {
	a, ok := Lookup(Claude)
	if !ok {
		t.Fatal("claude adapter not found")
	}
	s, ok := a.ExpandShortcut("  STOP  ")
	if !ok {
		t.Fatal("expected shortcut match")
	}
	if s.Keys != "Escape" || s.Enter {
		t.Errorf("shortcut = %+v", s)
	}
}

func TestExpandShortcutUnknown(t *testing.T) {
	a, _ := Lookup(Claude)
	if _, ok := a.ExpandShortcut("not-a-shortcut"); ok {
		t.Error("expected no match")
	}
}

func TestCodexHasFewerShortcuts(t *testing.T) {
	claude, _ := Lookup(Claude)
	codex, _ := Lookup(Codex)
	if len(codex.Shortcuts) >= len(claude.Shortcuts) {
		t.Errorf("expected codex to have fewer shortcuts than claude")
	}
	if _, ok := codex.ExpandShortcut("tab"); ok {
		t.Error("codex has no tab shortcut")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"claude", Claude, true},
		{" Codex ", Codex, true},
		{"CLAUDE", Claude, true},
		{"gemini", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseKind(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseKind(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLaunchCommandIncludesWorkingDir(t *testing.T) {
	a, _ := Lookup(Claude)
	cmd := a.LaunchCommand("/home/me/project")
	if cmd == "" {
		t.Fatal("empty launch command")
	}
	if !strings.Contains(cmd, "/home/me/project") {
		t.Errorf("launch command %q does not include the working dir", cmd)
	}
}
