// Package terminal defines the black-box multiplexer abstraction the
// orchestrator drives sessions through. Nothing above this package knows
// it is talking to tmux specifically — a Backend could just as well be
// a fake for tests, or some other terminal multiplexer entirely.
package terminal

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when an operation targets a session name
// the backend has no record of.
var ErrSessionNotFound = errors.New("terminal: session not found")

// Backend is the black-box terminal multiplexer contract. All methods
// operate on the single active pane of the named session — this system
// never drives split panes or multiple windows within one session.
type Backend interface {
	// CreateSession starts a new session running command in a pane of the
	// given dimensions, with scrollbackLines of history retained.
	CreateSession(ctx context.Context, name, command string, paneWidth, paneHeight, scrollbackLines int) error

	// SendKeys sends keys to the session's active pane. When literal is
	// true, keys are sent as literal text rather than interpreted as a
	// multiplexer key name (e.g. "Enter", "Up"). When enter is true, an
	// Enter keystroke follows.
	SendKeys(ctx context.Context, name, keys string, enter, literal bool) error

	// CapturePane returns the currently visible pane content, newline
	// joined.
	CapturePane(ctx context.Context, name string) (string, error)

	// CaptureScrollback returns scrollback lines above and including the
	// visible pane. If tail is non-nil, only the last *tail lines are
	// captured; nil captures everything retained.
	CaptureScrollback(ctx context.Context, name string, tail *int) ([]string, error)

	// HistorySize returns the number of scrollback lines above the pane.
	HistorySize(ctx context.Context, name string) (int, error)

	// IsProcessDead reports whether the pane's foreground process has
	// exited. Requires the session to have been created with
	// remain-on-exit behavior, otherwise the session disappears instead
	// of leaving a dead pane behind.
	IsProcessDead(ctx context.Context, name string) (bool, error)

	// IsAlive reports whether the named session currently exists.
	IsAlive(ctx context.Context, name string) bool

	// Kill destroys a session. A missing session is not an error.
	Kill(ctx context.Context, name string) error

	// ListSessions lists every session name known to the backend.
	ListSessions(ctx context.Context) ([]string, error)

	// SessionPath returns the active pane's current working directory, or
	// "" if it could not be determined.
	SessionPath(ctx context.Context, name string) string
}
