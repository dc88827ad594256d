package terminal

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionExists is returned by Fake.CreateSession when name is already
// in use.
var ErrSessionExists = errors.New("terminal: session already exists")

// fakeSession is one in-memory session's simulated pane state.
type fakeSession struct {
	command    string
	paneWidth  int
	paneHeight int
	lines      []string // full scrollback, oldest first; tail is the visible pane
	dead       bool
	killed     bool
	path       string
}

// Fake is an in-memory Backend used by the orchestrator and HTTP tests.
// Tests drive it directly via PushLines/SetProcessDead/SetSessionPath rather
// than through a real terminal, so orchestrator logic can be exercised
// without tmux installed.
type Fake struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
}

// NewFake returns an empty Fake backend.
func NewFake() *Fake {
	return &Fake{sessions: make(map[string]*fakeSession)}
}

func (f *Fake) CreateSession(ctx context.Context, name, command string, paneWidth, paneHeight, scrollbackLines int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.sessions[name]; exists {
		return ErrSessionExists
	}
	f.sessions[name] = &fakeSession{
		command:    command,
		paneWidth:  paneWidth,
		paneHeight: paneHeight,
	}
	return nil
}

func (f *Fake) SendKeys(ctx context.Context, name, keys string, enter, literal bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return ErrSessionNotFound
	}
	if literal {
		s.lines = append(s.lines, keys)
	}
	if enter {
		s.lines = append(s.lines, "")
	}
	return nil
}

func (f *Fake) CapturePane(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return "", ErrSessionNotFound
	}
	lines := s.lines
	if len(lines) > s.paneHeight {
		lines = lines[len(lines)-s.paneHeight:]
	}
	return joinLines(lines), nil
}

func (f *Fake) CaptureScrollback(ctx context.Context, name string, tail *int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if tail == nil || *tail >= len(s.lines) {
		out := make([]string, len(s.lines))
		copy(out, s.lines)
		return out, nil
	}
	out := make([]string, *tail)
	copy(out, s.lines[len(s.lines)-*tail:])
	return out, nil
}

func (f *Fake) HistorySize(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return 0, nil
	}
	n := len(s.lines) - s.paneHeight
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (f *Fake) IsProcessDead(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return false, ErrSessionNotFound
	}
	return s.dead, nil
}

func (f *Fake) IsAlive(ctx context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	return ok && !s.killed
}

func (f *Fake) Kill(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, name)
	return nil
}

func (f *Fake) ListSessions(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.sessions))
	for name, s := range f.sessions {
		if !s.killed {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *Fake) SessionPath(ctx context.Context, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return ""
	}
	return s.path
}

// --- test helpers, not part of Backend ---

// PushLines appends simulated output lines to a session's scrollback.
func (f *Fake) PushLines(name string, lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[name]; ok {
		s.lines = append(s.lines, lines...)
	}
}

// SetProcessDead marks a session's pane process as exited, simulating
// tmux's remain-on-exit behavior.
func (f *Fake) SetProcessDead(name string, dead bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[name]; ok {
		s.dead = dead
	}
}

// SetSessionPath sets the working directory a session reports.
func (f *Fake) SetSessionPath(name, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[name]; ok {
		s.path = path
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
