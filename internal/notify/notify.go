// Package notify defines the boundary between the orchestrator's parsed
// UI state and an eventual push-notification delivery mechanism (Web Push,
// VAPID keys, subscription storage). None of that delivery machinery lives
// here — only the narrow interface the HTTP shim calls through whenever a
// live-output poll observes a state change, the way clipboard.py and
// sessions.py's other external collaborators are specified only at their
// interface with the core.
package notify

import "github.com/agentdeck/agentdeck/internal/uistate"

// StateNotifier is told about every session state transition observed by
// a live-output poll. Implementations decide what, if anything, to do with
// that — send a push notification, update a dashboard, nothing at all.
type StateNotifier interface {
	NotifyStateChange(sessionID string, state uistate.ParsedOutput)
}

// NoOp is a StateNotifier that does nothing. It is the shipped
// implementation: a real one (Web Push delivery, subscription storage) is
// out of scope, per the spec's "specified only at their interface" stance.
type NoOp struct{}

// NotifyStateChange discards the notification.
func (NoOp) NotifyStateChange(string, uistate.ParsedOutput) {}
