package terminal

import (
	"context"
	"testing"
)

func TestFakeCreateAndCapture(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	if err := f.CreateSession(ctx, "s1", "claude", 160, 35, 2000); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !f.IsAlive(ctx, "s1") {
		t.Fatal("expected session alive after create")
	}

	f.PushLines("s1", "line1", "line2", "line3")

	out, err := f.CapturePane(ctx, "s1")
	if err != nil {
		t.Fatalf("CapturePane: %v", err)
	}
	if out != "line1\nline2\nline3" {
		t.Errorf("CapturePane = %q", out)
	}
}

func TestFakeCreateDuplicate(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	if err := f.CreateSession(ctx, "s1", "claude", 160, 35, 2000); err != nil {
		t.Fatal(err)
	}
	if err := f.CreateSession(ctx, "s1", "claude", 160, 35, 2000); err != ErrSessionExists {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}
}

func TestFakeHistorySizeRespectsPaneHeight(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	f.CreateSession(ctx, "s1", "claude", 160, 3, 2000)
	f.PushLines("s1", "a", "b", "c", "d", "e")

	n, err := f.HistorySize(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("HistorySize = %d, want 2", n)
	}

	pane, _ := f.CapturePane(ctx, "s1")
	if pane != "c\nd\ne" {
		t.Errorf("CapturePane = %q", pane)
	}
}

func TestFakeCaptureScrollbackTail(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	f.CreateSession(ctx, "s1", "claude", 160, 3, 2000)
	f.PushLines("s1", "a", "b", "c", "d", "e")

	tail := 2
	lines, err := f.CaptureScrollback(ctx, "s1", &tail)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "d" || lines[1] != "e" {
		t.Errorf("CaptureScrollback(tail=2) = %v", lines)
	}

	all, err := f.CaptureScrollback(ctx, "s1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("CaptureScrollback(nil) len = %d, want 5", len(all))
	}
}

func TestFakeProcessDeadAndKill(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	f.CreateSession(ctx, "s1", "claude", 160, 35, 2000)

	dead, err := f.IsProcessDead(ctx, "s1")
	if err != nil || dead {
		t.Errorf("expected alive process, got dead=%v err=%v", dead, err)
	}

	f.SetProcessDead("s1", true)
	dead, err = f.IsProcessDead(ctx, "s1")
	if err != nil || !dead {
		t.Errorf("expected dead process, got dead=%v err=%v", dead, err)
	}

	if err := f.Kill(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if f.IsAlive(ctx, "s1") {
		t.Error("expected session gone after kill")
	}
}

func TestFakeListSessionsAndPath(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	f.CreateSession(ctx, "s1", "claude", 160, 35, 2000)
	f.CreateSession(ctx, "s2", "codex", 160, 35, 2000)
	f.SetSessionPath("s1", "/home/me/project")

	names, err := f.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Errorf("ListSessions len = %d, want 2", len(names))
	}

	if p := f.SessionPath(ctx, "s1"); p != "/home/me/project" {
		t.Errorf("SessionPath = %q", p)
	}
	if p := f.SessionPath(ctx, "missing"); p != "" {
		t.Errorf("SessionPath(missing) = %q, want empty", p)
	}
}
