// Package agentkind holds the per-coding-agent adapter table: the launch
// command, shortcut keymap, and slash-command list for each supported
// agent. There is no class hierarchy here — each Kind is just a lookup key
// into a table of plain data, following the spec's "no dynamic dispatch"
// design note.
package agentkind

import (
	"fmt"
	"strings"
)

// Kind identifies a supported coding agent CLI.
type Kind string

const (
	Claude Kind = "claude"
	Codex  Kind = "codex"
)

// Shortcut is a keymap entry: the tmux key name to send, and whether it is
// followed by a literal Enter press.
type Shortcut struct {
	Keys  string
	Enter bool
}

// SlashCommand describes a single agent slash command exposed to clients.
type SlashCommand struct {
	Text             string `json:"text"`
	SendEnter        bool   `json:"enter"`
	NeedConfirmation bool   `json:"confirm"`
	ShowNav          bool   `json:"nav"`
}

// Adapter is the immutable data record for one agent kind: how to launch
// it, and how it maps shortcut names and slash commands to terminal input.
type Adapter struct {
	Kind          Kind
	LaunchCommand func(workingDir string) string
	Shortcuts     map[string]Shortcut
	SlashCommands []SlashCommand
}

// ExpandShortcut looks up a shortcut by name (case-insensitive, trimmed).
// Reports false if text does not name a known shortcut.
func (a Adapter) ExpandShortcut(text string) (Shortcut, bool) {
	s, ok := a.Shortcuts[strings.ToLower(strings.TrimSpace(text))]
	return s, ok
}

var registry = map[Kind]Adapter{
	Claude: {
		Kind: Claude,
		LaunchCommand: func(workingDir string) string {
			return fmt.Sprintf("%s %s claude", startAgentScript, workingDir)
		},
		Shortcuts: map[string]Shortcut{
			"stop":   {Keys: "Escape", Enter: false},
			"cancel": {Keys: "C-c", Enter: false},
			"up":     {Keys: "Up", Enter: false},
			"down":   {Keys: "Down", Enter: false},
			"left":   {Keys: "Left", Enter: false},
			"right":  {Keys: "Right", Enter: false},
			"enter":  {Keys: "Enter", Enter: false},
			"tab":    {Keys: "BTab", Enter: false},
		},
		SlashCommands: []SlashCommand{
			{Text: "/clear", SendEnter: true, NeedConfirmation: true, ShowNav: false},
			{Text: "/config", SendEnter: true, NeedConfirmation: false, ShowNav: true},
			{Text: "/context", SendEnter: true, NeedConfirmation: false, ShowNav: false},
			{Text: "/compact", SendEnter: true, NeedConfirmation: true, ShowNav: false},
			{Text: "/model", SendEnter: true, NeedConfirmation: false, ShowNav: true},
		},
	},
	Codex: {
		Kind: Codex,
		LaunchCommand: func(workingDir string) string {
			return fmt.Sprintf("%s %s codex", startAgentScript, workingDir)
		},
		Shortcuts: map[string]Shortcut{
			"stop":   {Keys: "Escape", Enter: false},
			"cancel": {Keys: "C-c", Enter: false},
			"up":     {Keys: "Up", Enter: false},
			"down":   {Keys: "Down", Enter: false},
			"enter":  {Keys: "Enter", Enter: false},
		},
		SlashCommands: []SlashCommand{
			{Text: "/model", SendEnter: true, NeedConfirmation: false, ShowNav: false},
		},
	},
}

// startAgentScript is the shell script every adapter shells out to in
// order to actually exec the agent binary in its working directory.
const startAgentScript = "scripts/start_agent.sh"

// Lookup returns the Adapter for kind, or false if kind is unsupported.
func Lookup(kind Kind) (Adapter, bool) {
	a, ok := registry[kind]
	return a, ok
}

// ParseKind normalizes and validates a raw agent-kind string.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry[k]; ok {
		return k, true
	}
	return "", false
}
