package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/agentdeck/agentdeck/internal/agentkind"
	"github.com/agentdeck/agentdeck/internal/logging"
	"github.com/agentdeck/agentdeck/internal/uistate"
)

const debugPromptTemplate = "first read docs/architecture.md to understand the application architecture.\n\n" +
	"User using %s reported this issue:\n%s\n\n" +
	"just analyze the root cause and do not change the code just yet. below is the tmux capture :\n\n" +
	"<tmux-capture>\n%s\n</tmux-capture>"

const (
	debugPollInterval = 2 * time.Second
	debugPollAttempts = 30 // 30 * 2s = 60s timeout
)

// StartDebugSession creates a new session rooted at the orchestrator's own
// source directory and, in the background, waits for it to reach the
// Prompt state before handing it a templated bug report built from the
// originating session's last captured output. The returned session is
// immediately usable; the prompt delivery happens asynchronously.
func (o *Orchestrator) StartDebugSession(ctx context.Context, originalID, description string) (*SessionInfo, error) {
	const op = "StartDebugSession"

	original, err := o.GetSession(ctx, originalID)
	if err != nil {
		return nil, err
	}
	output, err := o.CaptureOutput(ctx, originalID)
	if err != nil {
		return nil, err
	}

	debugSession, err := o.CreateSession(ctx, o.debugOwner, agentkind.Claude, "debug")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(debugPromptTemplate, original.AgentKind, description, output.Content)
	go o.sendDebugPromptWhenReady(debugSession.SessionID, prompt)

	return debugSession, nil
}

// sendDebugPromptWhenReady polls the new debug session until it reaches the
// Prompt state (or the attempt budget runs out), then delivers prompt.
// Runs detached from the triggering request's context since the request
// itself must return immediately — this is intentionally long-lived
// background work, not part of the caller's deadline.
func (o *Orchestrator) sendDebugPromptWhenReady(sessionID, prompt string) {
	ctx := context.Background()

	ready := false
	for i := 0; i < debugPollAttempts; i++ {
		time.Sleep(debugPollInterval)
		parsed, err := o.ParseOutput(ctx, sessionID)
		if err != nil {
			logging.Logger.Debug().Err(err).Str("session", sessionID).Msg("debug_poll_failed")
			continue
		}
		if parsed.State == uistate.Prompt {
			ready = true
			break
		}
	}

	if !ready {
		logging.Logger.Warn().Str("session", sessionID).Msg("debug_session_prompt_timeout")
		return
	}

	if err := o.SendRawKeys(ctx, sessionID, prompt); err != nil {
		logging.Logger.Warn().Err(err).Str("session", sessionID).Msg("debug_prompt_send_failed")
		return
	}
	time.Sleep(300 * time.Millisecond)
	rt, ok := o.reg.runtime(sessionID)
	if !ok {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := o.backend.SendKeys(ctx, sessionID, "Enter", false, false); err != nil {
		logging.Logger.Debug().Err(err).Str("session", sessionID).Msg("debug_prompt_enter_failed")
	}
}
