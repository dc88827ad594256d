package orchestrator

import (
	"context"
	"time"

	"github.com/agentdeck/agentdeck/internal/logging"
)

// RunCaptureLoop ticks every interval, appending each active session's new
// scrollback to the output log. It returns when ctx is canceled.
func (o *Orchestrator) RunCaptureLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Logger.Info().Dur("interval", interval).Msg("capture_loop_started")

	for {
		select {
		case <-ctx.Done():
			logging.Logger.Info().Msg("capture_loop_stopped")
			return
		case <-ticker.C:
			for _, id := range o.ActiveSessionIDs() {
				if err := o.captureTick(ctx, id); err != nil {
					logging.Logger.Debug().Err(err).Str("session", id).Msg("capture_failed")
				}
			}
		}
	}
}

// captureTick appends one session's new output to the log: a final capture
// plus session teardown if the pane process has died, otherwise an
// incremental capture of whatever scrollback grew since the last tick.
func (o *Orchestrator) captureTick(ctx context.Context, id string) error {
	rt, ok := o.reg.runtime(id)
	if !ok {
		return nil
	}

	dead, err := o.backend.IsProcessDead(ctx, id)
	if err != nil {
		return err
	}
	if dead {
		return o.captureFinal(ctx, id, rt)
	}

	historySize, err := o.backend.HistorySize(ctx, id)
	if err != nil {
		return err
	}

	rt.mu.Lock()
	unchanged := historySize == rt.lastHistorySize
	rt.mu.Unlock()
	if unchanged {
		return nil
	}

	// history_size only counts lines that have scrolled off the visible
	// pane, so the total capture needed to see everything is history plus
	// the pane height itself.
	tail := historySize + o.opts.PaneHeight
	lines, err := o.backend.CaptureScrollback(ctx, id, &tail)
	if err != nil {
		return err
	}

	rt.mu.Lock()
	newLines := findOverlap(rt.lastTail, lines)
	rt.lastTail = tailOf(lines, fingerprintSize)
	rt.lastHistorySize = historySize
	rt.mu.Unlock()

	if len(newLines) == 0 {
		return nil
	}
	if o.log == nil {
		return nil
	}
	return o.log.Append(id, newLines, nowSeconds(o.nowFunc()))
}

// captureFinal performs one last overlap-diffed capture, appends whatever
// remains, then tears the session down: kills the backend session and
// marks it dead in the registry.
func (o *Orchestrator) captureFinal(ctx context.Context, id string, rt *sessionRuntime) error {
	lines, err := o.backend.CaptureScrollback(ctx, id, nil)
	if err != nil {
		return err
	}

	rt.mu.Lock()
	newLines := findOverlap(rt.lastTail, lines)
	rt.mu.Unlock()

	if len(newLines) > 0 && o.log != nil {
		if err := o.log.Append(id, newLines, nowSeconds(o.nowFunc())); err != nil {
			return err
		}
	}

	logging.Logger.Debug().
		Str("session", id).
		Int("total_lines", len(lines)).
		Int("new_lines", len(newLines)).
		Msg("capture_final")

	if err := o.backend.Kill(ctx, id); err != nil {
		logging.Logger.Warn().Err(err).Str("session", id).Msg("capture_final_kill_failed")
	}
	o.markDead(id)
	return nil
}

// findOverlap locates where current continues previous, using the last
// fingerprintSize lines of previous as a fingerprint, and returns only the
// lines in current that come after that overlap point. Returns all of
// current if no overlap is found (previous is empty, or the pane scrolled
// past the fingerprint entirely).
func findOverlap(previousTail, current []string) []string {
	if len(previousTail) == 0 {
		return current
	}

	idx := findSubsequence(current, previousTail)
	if idx < 0 {
		return current
	}
	start := idx + len(previousTail)
	if start >= len(current) {
		return nil
	}
	return current[start:]
}

// findSubsequence returns the smallest index in haystack where needle
// begins as a contiguous subsequence, or -1 if absent. Scans forward from
// the start so a fingerprint that recurs more than once (a repeated
// prompt or banner) resolves to its earliest occurrence, matching the
// smallest-i overlap point.
func findSubsequence(haystack, needle []string) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for start := 0; start <= len(haystack)-len(needle); start++ {
		if equalSlices(haystack[start:start+len(needle)], needle) {
			return start
		}
	}
	return -1
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// tailOf returns the last n elements of lines (or all of them if shorter),
// copied so later mutation of lines doesn't alias the fingerprint.
func tailOf(lines []string, n int) []string {
	start := len(lines) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, len(lines)-start)
	copy(out, lines[start:])
	return out
}

func nowSeconds(now func() time.Time) float64 {
	t := now()
	return float64(t.UnixNano()) / 1e9
}
