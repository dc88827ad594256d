// Package orchestrator hosts agent sessions in the terminal backend,
// dispatches input and selections to them, and keeps a durable output log
// in sync with what's actually on screen. It is the one place that knows
// how a "session" is assembled from a terminal pane, a UI-state parser, and
// an agent adapter.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/agentdeck/agentdeck/internal/agentkind"
	"github.com/agentdeck/agentdeck/internal/clipboard"
	"github.com/agentdeck/agentdeck/internal/logging"
	"github.com/agentdeck/agentdeck/internal/outputlog"
	"github.com/agentdeck/agentdeck/internal/recentdirs"
	"github.com/agentdeck/agentdeck/internal/terminal"
	"github.com/agentdeck/agentdeck/internal/uistate"
)

// fingerprintSize is how many trailing lines of the previous scrollback
// capture are used to locate the overlap point in the next one.
const fingerprintSize = 5

// Options configures pane geometry and capture behavior. Zero values fall
// back to sensible defaults via WithDefaults.
type Options struct {
	PaneWidth       int
	PaneHeight      int
	ScrollbackLines int
	CaptureTail     int
}

// WithDefaults fills unset fields with the defaults used throughout the
// spec (160x35 pane, 2000-line scrollback, 300-line capture tail).
func (o Options) WithDefaults() Options {
	if o.PaneWidth == 0 {
		o.PaneWidth = 160
	}
	if o.PaneHeight == 0 {
		o.PaneHeight = 35
	}
	if o.ScrollbackLines == 0 {
		o.ScrollbackLines = 2000
	}
	if o.CaptureTail == 0 {
		o.CaptureTail = 300
	}
	return o
}

// SessionOutput is one pane-capture result.
type SessionOutput struct {
	SessionID string
	Content   string
	Changed   bool
}

// Orchestrator owns the registry of live sessions and drives them through a
// terminal.Backend.
type Orchestrator struct {
	backend    terminal.Backend
	log        *outputlog.Log
	recent     *recentdirs.Store
	opts       Options
	reg        *registry
	rehydrate  RehydrateFilter
	nowFunc    func() time.Time
	debugOwner string // working directory the orchestrator's own source lives in, used by debug sessions
}

// New constructs an Orchestrator. debugOwnerDir is the directory debug
// sessions are rooted in (SPEC_FULL.md's debug-session feature roots the
// new session at the orchestrator's own source tree so it can read
// docs/architecture.md).
func New(backend terminal.Backend, log *outputlog.Log, recent *recentdirs.Store, opts Options, rehydrate RehydrateFilter, debugOwnerDir string) *Orchestrator {
	return &Orchestrator{
		backend:    backend,
		log:        log,
		recent:     recent,
		opts:       opts.WithDefaults(),
		reg:        newRegistry(),
		rehydrate:  rehydrate,
		nowFunc:    time.Now,
		debugOwner: debugOwnerDir,
	}
}

// CreateSession launches a new agent session rooted at workingDir.
func (o *Orchestrator) CreateSession(ctx context.Context, workingDir string, kind agentkind.Kind, title string) (*SessionInfo, error) {
	const op = "CreateSession"

	adapter, ok := agentkind.Lookup(kind)
	if !ok {
		return nil, badInput(op, fmt.Sprintf("unknown agent kind %q", kind))
	}

	absDir, err := filepath.Abs(workingDir)
	if err != nil {
		return nil, badInput(op, fmt.Sprintf("invalid working dir %q: %v", workingDir, err))
	}

	fi, err := os.Stat(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, badInput(op, fmt.Sprintf("working dir %q does not exist", absDir))
		}
		return nil, badInput(op, fmt.Sprintf("working dir %q: %v", absDir, err))
	}
	if !fi.IsDir() {
		return nil, badInput(op, fmt.Sprintf("working dir %q is not a directory", absDir))
	}

	id := o.buildSessionID(kind, title, absDir)
	command := adapter.LaunchCommand(absDir)

	if err := o.backend.CreateSession(ctx, id, command, o.opts.PaneWidth, o.opts.PaneHeight, o.opts.ScrollbackLines); err != nil {
		return nil, unavailable(op, err)
	}

	info := &SessionInfo{
		SessionID:  id,
		AgentKind:  kind,
		WorkingDir: absDir,
		Title:      title,
		IsAlive:    true,
		StartedAt:  o.nowFunc(),
	}
	o.reg.put(info)

	if o.recent != nil {
		if err := o.recent.Record(absDir); err != nil {
			logging.Logger.Warn().Err(err).Str("dir", absDir).Msg("record_recent_dir_failed")
		}
	}

	return info, nil
}

// buildSessionID derives a readable, collision-free tmux session name:
// "agent-<kind>-<slug>", suffixed with "-2", "-3", ... on collision. The
// slug prefers title, falling back to the working directory's base name.
func (o *Orchestrator) buildSessionID(kind agentkind.Kind, title, workingDir string) string {
	base := title
	if base == "" {
		base = filepath.Base(workingDir)
	}
	slug := slugify(base)
	if len(slug) > 20 {
		slug = slug[:20]
	}
	candidate := fmt.Sprintf("agent-%s-%s", kind, slug)

	existing := o.reg.all()
	taken := make(map[string]bool, len(existing))
	dirTaken := make(map[string]bool, len(existing))
	for _, s := range existing {
		taken[s.SessionID] = true
		dirTaken[s.WorkingDir] = true
	}

	if !taken[candidate] && !dirTaken[workingDir] {
		return candidate
	}
	for n := 2; ; n++ {
		c := fmt.Sprintf("%s-%d", candidate, n)
		if !taken[c] {
			return c
		}
	}
}

var slugInvalidRE = regexp.MustCompile(`[^a-z0-9_-]+`)

// slugify lowercases s and collapses every run of characters outside
// [a-z0-9_-] into a single hyphen, trimming leading/trailing hyphens.
func slugify(s string) string {
	s = strings.ToLower(s)
	s = slugInvalidRE.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "session"
	}
	return s
}

// SendInput dispatches text to a session: a known shortcut name is expanded
// to its keymap entry, anything else is sent as literal text followed by
// Enter.
func (o *Orchestrator) SendInput(ctx context.Context, id, text string) error {
	const op = "SendInput"
	info, err := o.requireAlive(op, id)
	if err != nil {
		return err
	}
	rt, _ := o.reg.runtime(id)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	adapter, _ := agentkind.Lookup(info.AgentKind)
	if shortcut, ok := adapter.ExpandShortcut(text); ok {
		if err := o.backend.SendKeys(ctx, id, shortcut.Keys, shortcut.Enter, false); err != nil {
			return unavailable(op, err)
		}
		return nil
	}

	if err := o.backend.SendKeys(ctx, id, text, false, true); err != nil {
		return unavailable(op, err)
	}
	sleep(ctx, 150*time.Millisecond)
	if err := o.backend.SendKeys(ctx, id, "Enter", false, false); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// SendRawKeys sends text as literal keystrokes with no shortcut expansion
// and no trailing Enter.
func (o *Orchestrator) SendRawKeys(ctx context.Context, id, text string) error {
	const op = "SendRawKeys"
	if _, err := o.requireAlive(op, id); err != nil {
		return err
	}
	rt, _ := o.reg.runtime(id)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := o.backend.SendKeys(ctx, id, text, false, true); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// SendSelection dispatches a choice in a numbered selection list. If the
// list is arrow-navigable (the agent tracks a highlighted row), the
// orchestrator sends Up/Down to move the highlight before confirming;
// otherwise it types the item's digit directly. A non-empty freeformText is
// sent afterward for "type something" style options.
func (o *Orchestrator) SendSelection(ctx context.Context, id string, itemNumber int, freeformText string) error {
	const op = "SendSelection"
	if _, err := o.requireAlive(op, id); err != nil {
		return err
	}
	rt, _ := o.reg.runtime(id)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	raw, err := o.backend.CapturePane(ctx, id)
	if err != nil {
		return unavailable(op, err)
	}
	parsed := uistate.Parse(raw)
	if parsed.State != uistate.Selection {
		return conflict(op, "session is not showing a selection list")
	}

	targetIdx := -1
	for i, item := range parsed.Items {
		if item.Number == itemNumber {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return badInput(op, fmt.Sprintf("item %d not present in selection", itemNumber))
	}

	if parsed.ArrowNavigable {
		delta := targetIdx - parsed.SelectedIndex
		key := "Down"
		if delta < 0 {
			key = "Up"
			delta = -delta
		}
		for i := 0; i < delta; i++ {
			if err := o.backend.SendKeys(ctx, id, key, false, false); err != nil {
				return unavailable(op, err)
			}
			sleep(ctx, 50*time.Millisecond)
		}
		sleep(ctx, 150*time.Millisecond)
		if err := o.backend.SendKeys(ctx, id, "Enter", false, false); err != nil {
			return unavailable(op, err)
		}
	} else {
		digit := fmt.Sprintf("%d", itemNumber)
		if err := o.backend.SendKeys(ctx, id, digit, false, true); err != nil {
			return unavailable(op, err)
		}
		sleep(ctx, 150*time.Millisecond)
		if err := o.backend.SendKeys(ctx, id, "Enter", false, false); err != nil {
			return unavailable(op, err)
		}
	}

	if freeformText != "" {
		sleep(ctx, 200*time.Millisecond)
		if err := o.backend.SendKeys(ctx, id, freeformText, true, true); err != nil {
			return unavailable(op, err)
		}
	}
	return nil
}

// PasteImage copies the image at path onto the system clipboard and sends
// Ctrl-V to the session's pane.
func (o *Orchestrator) PasteImage(ctx context.Context, id, path, format string) error {
	const op = "PasteImage"
	if _, err := o.requireAlive(op, id); err != nil {
		return err
	}
	rt, _ := o.reg.runtime(id)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := clipboard.CopyImage(ctx, path, format); err != nil {
		return unavailable(op, err)
	}
	sleep(ctx, 100*time.Millisecond)
	if err := o.backend.SendKeys(ctx, id, "C-v", false, false); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// CaptureOutput captures the session's current pane text and reports
// whether it changed since the last call.
func (o *Orchestrator) CaptureOutput(ctx context.Context, id string) (SessionOutput, error) {
	const op = "CaptureOutput"
	info, ok := o.reg.get(id)
	if !ok {
		return SessionOutput{}, notFound(op, id)
	}
	if !info.IsAlive {
		return SessionOutput{SessionID: id, Content: "Session ended", Changed: false}, nil
	}

	raw, err := o.backend.CapturePane(ctx, id)
	if err != nil {
		return SessionOutput{}, unavailable(op, err)
	}

	rt, _ := o.reg.runtime(id)
	rt.mu.Lock()
	changed := raw != rt.lastOutput
	rt.lastOutput = raw
	rt.mu.Unlock()

	return SessionOutput{SessionID: id, Content: raw, Changed: changed}, nil
}

// ParseOutput captures and parses a session's pane into UI state.
func (o *Orchestrator) ParseOutput(ctx context.Context, id string) (uistate.ParsedOutput, error) {
	out, err := o.CaptureOutput(ctx, id)
	if err != nil {
		return uistate.ParsedOutput{}, err
	}
	return uistate.Parse(out.Content), nil
}

// KillSession forcibly terminates an alive session, or soft-removes a
// tracked dead one. Returns "killed" or "removed" to describe which
// happened.
func (o *Orchestrator) KillSession(ctx context.Context, id string) (string, error) {
	const op = "KillSession"
	info, ok := o.reg.get(id)
	if !ok {
		return "", notFound(op, id)
	}

	if info.IsAlive {
		if err := o.backend.Kill(ctx, id); err != nil {
			return "", unavailable(op, err)
		}
		now := o.nowFunc()
		o.reg.update(id, func(s *SessionInfo) {
			s.IsAlive = false
			s.EndedAt = &now
		})
		return "killed", nil
	}

	if err := o.RemoveDeadSession(id); err != nil {
		return "", err
	}
	return "removed", nil
}

// RemoveDeadSession drops a dead session's tracking entry and archives its
// output log. Requires the session to already be marked dead.
func (o *Orchestrator) RemoveDeadSession(id string) error {
	const op = "RemoveDeadSession"
	info, ok := o.reg.get(id)
	if !ok {
		return notFound(op, id)
	}
	if info.IsAlive {
		return conflict(op, "session is still alive")
	}
	if o.log != nil {
		if err := o.log.SoftDelete(id); err != nil {
			return internal(op, err)
		}
	}
	o.reg.remove(id)
	return nil
}

// ListSessions returns every tracked session, re-checking liveness against
// the backend for sessions still marked alive (a session can die between
// capture-loop ticks without the registry having noticed yet).
func (o *Orchestrator) ListSessions(ctx context.Context) []*SessionInfo {
	all := o.reg.all()
	for _, s := range all {
		if s.IsAlive && !o.backend.IsAlive(ctx, s.SessionID) {
			o.markDead(s.SessionID)
			s.IsAlive = false
			now := o.nowFunc()
			s.EndedAt = &now
		}
	}
	return all
}

// GetSession returns one session's info, re-checking liveness the same way
// ListSessions does.
func (o *Orchestrator) GetSession(ctx context.Context, id string) (*SessionInfo, error) {
	const op = "GetSession"
	info, ok := o.reg.get(id)
	if !ok {
		return nil, notFound(op, id)
	}
	if info.IsAlive && !o.backend.IsAlive(ctx, id) {
		o.markDead(id)
		info.IsAlive = false
		now := o.nowFunc()
		info.EndedAt = &now
	}
	return info, nil
}

// ActiveSessionIDs returns the ids of every session the registry believes
// is alive, for the capture loop to iterate.
func (o *Orchestrator) ActiveSessionIDs() []string {
	return o.reg.activeIDs()
}

func (o *Orchestrator) markDead(id string) {
	now := o.nowFunc()
	o.reg.update(id, func(s *SessionInfo) {
		s.IsAlive = false
		s.EndedAt = &now
	})
}

func (o *Orchestrator) requireAlive(op, id string) (*SessionInfo, error) {
	info, ok := o.reg.get(id)
	if !ok {
		return nil, notFound(op, id)
	}
	if !info.IsAlive {
		return nil, conflict(op, "session is not alive")
	}
	return info, nil
}

// RecentDirs returns the home-relativized list of recently used working
// directories.
func (o *Orchestrator) RecentDirs() []string {
	if o.recent == nil {
		return nil
	}
	return o.recent.List()
}

// SlashCommands returns the slash commands exposed by the given agent kind.
func (o *Orchestrator) SlashCommands(kind agentkind.Kind) ([]agentkind.SlashCommand, error) {
	adapter, ok := agentkind.Lookup(kind)
	if !ok {
		return nil, badInput("SlashCommands", fmt.Sprintf("unknown agent kind %q", kind))
	}
	return adapter.SlashCommands, nil
}

// ReadHistory returns a page of previously logged output for id, read back
// from the output log rather than the live pane.
func (o *Orchestrator) ReadHistory(id string, before *float64, limit int) (outputlog.HistoryPage, error) {
	const op = "ReadHistory"
	if o.log == nil {
		return outputlog.HistoryPage{}, unavailable(op, fmt.Errorf("output log not configured"))
	}
	return o.log.Read(id, before, limit)
}

// RegisterExistingSession tracks a tmux session that was already running
// before this process started, used by startup rehydration. Reports false
// without registering anything if workingDir falls outside the configured
// rehydrate whitelist.
func (o *Orchestrator) RegisterExistingSession(id, workingDir string, kind agentkind.Kind) bool {
	if !o.rehydrate.Allowed(workingDir) {
		return false
	}
	o.reg.put(&SessionInfo{
		SessionID:  id,
		AgentKind:  kind,
		WorkingDir: workingDir,
		IsAlive:    true,
		StartedAt:  o.nowFunc(),
	})
	return true
}

// RegisterDeadSession tracks a session id found only in the output log (its
// tmux pane is long gone), so its history is still reachable via
// mode=history reads.
func (o *Orchestrator) RegisterDeadSession(id, workingDir string, endedAt float64, kind agentkind.Kind) {
	ended := time.Unix(int64(endedAt), 0)
	o.reg.put(&SessionInfo{
		SessionID:  id,
		AgentKind:  kind,
		WorkingDir: workingDir,
		IsAlive:    false,
		EndedAt:    &ended,
	})
}

// sleep blocks for d unless ctx is done first. Kept as a named helper (not
// a bare time.Sleep) so it's visibly a deliberate inter-keystroke pacing
// delay, not an accidental one — these durations are ported as-is from the
// delays the original agent-facing automation used to let each keystroke
// register before the next is sent.
func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
