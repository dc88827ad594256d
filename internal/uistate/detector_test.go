package uistate

import "testing"

const footer = "\nEnter to select · ↑/↓ to navigate · Esc to cancel"

const selectionBasic = "  What would you like to do?\n" +
	"  ❯ 1. Yes, proceed\n" +
	"    2. No, cancel\n" +
	"    3. Type something.\n" +
	footer + "\n"

const selectionWithDescriptions = "  Which file should I edit?\n" +
	"  ❯ 1. src/main.py\n" +
	"        The main entry point\n" +
	"    2. src/utils.py\n" +
	"        Utility functions\n" +
	"    3. Type something.\n" +
	footer + "\n"

const selectionCursorOnSecond = "  Allow this action?\n" +
	"    1. Allow once\n" +
	"  ❯ 2. Allow always\n" +
	"    3. Deny\n" +
	footer + "\n"

const selectionRealCapture = "  What would you like to learn about tmux?\n" +
	"  1. Basics & getting started\n" +
	"     Introduction to tmux sessions, windows, and panes\n" +
	"  2. Windows, panes & navigation\n" +
	"     Splitting panes, switching windows, and managing layouts\n" +
	"  3. Config & keybindings\n" +
	"     Customizing .tmux.conf, remapping prefix key, and plugins\n" +
	"  4. Scripting & automation\n" +
	"     Automating tmux workflows with scripts and tmuxinator/tmuxp\n" +
	"  5. Type something.\n" +
	"────────────────────────────────────────────────────────────────\n" +
	"  6. Chat about this\n" +
	"\n" +
	"Enter to select · ↑/↓ to navigate · Esc to cancel"

const selectionPermissionNoFooter = "  Allow Claude to execute Bash(git push origin main)?\n" +
	"  ❯ 1. Allow once\n" +
	"    2. Allow always for this session\n" +
	"    3. Deny\n"

const selectionScrolledAway = "  Pick a color?\n" +
	"  1. Red\n" +
	"  2. Blue\n" +
	"  3. Green\n" +
	"\n" +
	"  ...lots of output below...\n" +
	"  line\n  line\n  line\n  line\n  line\n  line\n  line\n"

const selectionPermissionPadded = "⏺ Bash(git checkout -- src/app.js)\n" +
	"  ⎿  Running…\n" +
	"\n" +
	"────────────────────────────────────────────────────────────────────────────────\n" +
	" Bash command\n" +
	"\n" +
	"   git checkout -- src/app.js\n" +
	"   Revert app.js to original state\n" +
	"\n" +
	" Do you want to proceed?\n" +
	" ❯ 1. Yes\n" +
	"   2. Yes, and don't ask again for git checkout commands\n" +
	"      /Users/lee/Projects/agentdeck\n" +
	"   3. No\n" +
	"\n" +
	" Esc to cancel · Tab to amend · ctrl+e to explain\n" +
	"\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n"

const selectionCodexNumberInput = "• Pick one option:\n" +
	"\n" +
	"  1. Build a quick feature in this repo\n" +
	"  2. Debug a specific bug\n" +
	"  3. Review architecture and suggest improvements\n" +
	"  4. Add/expand tests\n" +
	"  5. Explain one module in depth\n" +
	"\n" +
	"› Explain this codebase\n" +
	"\n" +
	"  ? for shortcuts                                         82% context left\n"

const numberedListNoSignal = "  Here are the results\n" +
	"  1. First item\n" +
	"  2. Second item\n" +
	"  3. Third item\n"

const workingSpinner = "✳ Moonwalking… (thought for 3s)\n"
const workingSpinnerColloquial = "✳ Hustlin'… (thought for 2s)\n"
const workingSpinnerLongText = "· Renaming OutputLog to AgentOutputLog across codebase… (1m 50s)\n"
const workingSpinnerToolUse = "⏺ Reading 1 file… (ctrl+o to expand)\n"
const workingSpinnerCompact = "✻ compacting conversation…\n"
const workingSurvey = "  Some output above\n  1: Bad    2: Fine    3: Good    0: Dismiss\n"

const promptBasic = "  Some output text here\n" +
	"─────────────────────────────\n" +
	"›\n" +
	"─────────────────────────────\n"
const promptEmpty = ""
const promptPlainText = "  Here is the code I found:\n  def hello():\n      print(\"world\")\n"

func TestSelectionBasic(t *testing.T) {
	result := Parse(selectionBasic)
	if result.State != Selection {
		t.Fatalf("state = %v, want Selection", result.State)
	}
	if len(result.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(result.Items))
	}
	if result.Items[0].Number != 1 || result.Items[0].Label != "Yes, proceed" {
		t.Errorf("item[0] = %+v", result.Items[0])
	}
	if result.Items[1].Label != "No, cancel" {
		t.Errorf("item[1] = %+v", result.Items[1])
	}
	if result.SelectedIndex != 0 {
		t.Errorf("selectedIndex = %d, want 0", result.SelectedIndex)
	}
}

func TestSelectionDescriptions(t *testing.T) {
	result := Parse(selectionWithDescriptions)
	if result.Items[0].Description != "The main entry point" {
		t.Errorf("description[0] = %q", result.Items[0].Description)
	}
	if result.Items[1].Description != "Utility functions" {
		t.Errorf("description[1] = %q", result.Items[1].Description)
	}
}

func TestSelectionCursorWithMarker(t *testing.T) {
	result := Parse(selectionCursorOnSecond)
	if result.State != Selection || result.SelectedIndex != 1 || len(result.Items) != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSelectionRealCaptureNoMarker(t *testing.T) {
	result := Parse(selectionRealCapture)
	if result.State != Selection {
		t.Fatalf("state = %v, want Selection", result.State)
	}
	if len(result.Items) != 6 {
		t.Fatalf("items = %d, want 6", len(result.Items))
	}
	if result.Items[0].Label != "Basics & getting started" {
		t.Errorf("item[0] = %+v", result.Items[0])
	}
	if result.Items[4].Label != "Type something." {
		t.Errorf("item[4] = %+v", result.Items[4])
	}
	if result.Items[5].Label != "Chat about this" {
		t.Errorf("item[5] = %+v", result.Items[5])
	}
	if result.SelectedIndex != 0 {
		t.Errorf("selectedIndex = %d, want 0", result.SelectedIndex)
	}
	if !result.Items[4].IsFreeform {
		t.Errorf("item[4] should be freeform")
	}
	if result.ArrowNavigable {
		t.Errorf("should not be arrow navigable")
	}
	if result.Question == "" {
		t.Errorf("expected a non-empty question")
	}
}

func TestSelectionPermissionNoFooter(t *testing.T) {
	result := Parse(selectionPermissionNoFooter)
	if result.State != Selection {
		t.Fatalf("state = %v, want Selection", result.State)
	}
	if len(result.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(result.Items))
	}
	if result.Items[0].Label != "Allow once" {
		t.Errorf("item[0] = %+v", result.Items[0])
	}
}

func TestSelectionPermissionPadded(t *testing.T) {
	result := Parse(selectionPermissionPadded)
	if result.State != Selection {
		t.Fatalf("state = %v, want Selection", result.State)
	}
	if len(result.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(result.Items))
	}
	if result.Items[0].Label != "Yes" || result.Items[2].Label != "No" {
		t.Errorf("items = %+v", result.Items)
	}
	if result.SelectedIndex != 0 {
		t.Errorf("selectedIndex = %d, want 0", result.SelectedIndex)
	}
}

func TestSelectionArrowNavigableWithMarker(t *testing.T) {
	result := Parse(selectionBasic)
	if !result.ArrowNavigable {
		t.Errorf("expected ArrowNavigable")
	}
}

func TestSelectionCodexNumberInput(t *testing.T) {
	result := Parse(selectionCodexNumberInput)
	if result.State != Selection {
		t.Fatalf("state = %v, want Selection", result.State)
	}
	if result.ArrowNavigable {
		t.Errorf("should not be arrow navigable")
	}
	if len(result.Items) != 5 {
		t.Fatalf("items = %d, want 5", len(result.Items))
	}
	if result.Items[0].Label != "Build a quick feature in this repo" {
		t.Errorf("item[0] = %+v", result.Items[0])
	}
	if result.Items[4].Label != "Explain one module in depth" {
		t.Errorf("item[4] = %+v", result.Items[4])
	}
}

func TestSelectionScrolledAwayNotSelection(t *testing.T) {
	result := Parse(selectionScrolledAway)
	if result.State != Prompt {
		t.Fatalf("state = %v, want Prompt", result.State)
	}
}

func TestNumberedListNoSignal(t *testing.T) {
	result := Parse(numberedListNoSignal)
	if result.State != Prompt {
		t.Fatalf("state = %v, want Prompt", result.State)
	}
}

func TestWorkingStates(t *testing.T) {
	for _, raw := range []string{
		workingSpinner,
		workingSpinnerColloquial,
		workingSpinnerLongText,
		workingSpinnerToolUse,
		workingSpinnerCompact,
	} {
		if got := Parse(raw).State; got != Working {
			t.Errorf("Parse(%q).State = %v, want Working", raw, got)
		}
	}
}

func TestWorkingSurveyAutoDismiss(t *testing.T) {
	result := Parse(workingSurvey)
	if result.State != Working {
		t.Fatalf("state = %v, want Working", result.State)
	}
	if result.AutoResponse != "0" {
		t.Errorf("autoResponse = %q, want \"0\"", result.AutoResponse)
	}
}

func TestPromptStates(t *testing.T) {
	for _, raw := range []string{promptBasic, promptEmpty, promptPlainText} {
		if got := Parse(raw).State; got != Prompt {
			t.Errorf("Parse(%q).State = %v, want Prompt", raw, got)
		}
	}
}

func TestSingleItemNotSelection(t *testing.T) {
	raw := "  1. Only one option\n" + footer + "\n"
	if got := Parse(raw).State; got != Prompt {
		t.Errorf("state = %v, want Prompt", got)
	}
}

func TestMarkerOnLastItem(t *testing.T) {
	raw := "  Pick one:\n    1. Apple\n    2. Banana\n  ❯ 3. Cherry\n" + footer + "\n"
	result := Parse(raw)
	if result.State != Selection {
		t.Fatalf("state = %v, want Selection", result.State)
	}
	if result.SelectedIndex != 2 {
		t.Errorf("selectedIndex = %d, want 2", result.SelectedIndex)
	}
	if result.Items[2].Label != "Cherry" {
		t.Errorf("item[2] = %+v", result.Items[2])
	}
}

func TestDetectionPriorityWorkingOverSelection(t *testing.T) {
	raw := "  ✻ Thinking…\n  1. Option A\n  2. Option B\n" + footer + "\n"
	if got := Parse(raw).State; got != Working {
		t.Errorf("state = %v, want Working", got)
	}
}

func TestHruleBetweenItems(t *testing.T) {
	raw := "  What would you like to learn about tmux?\n" +
		"  1. Basics & getting started\n" +
		"  2. Windows, panes & navigation\n" +
		"  3. Config & keybindings\n" +
		"  4. Scripting & automation\n" +
		"  5. Type something.\n" +
		"────────────────────────────────────────────────────\n" +
		"  6. Chat about this\n" +
		"\n" +
		"Enter to select · ↑/↓ to navigate · Esc to cancel"
	result := Parse(raw)
	if result.State != Selection {
		t.Fatalf("state = %v, want Selection", result.State)
	}
	if len(result.Items) != 6 {
		t.Fatalf("items = %d, want 6", len(result.Items))
	}
	if result.Items[0].Label != "Basics & getting started" || result.Items[5].Label != "Chat about this" {
		t.Errorf("items = %+v", result.Items)
	}
}

func TestStaleSelectionAboveCurrent(t *testing.T) {
	raw := "  Allow Claude to execute Bash(rm -rf /tmp/old)?\n" +
		"  ❯ 1. Allow once\n" +
		"    2. Allow always\n" +
		"    3. Deny\n" +
		"\n" +
		"  Esc to cancel · Tab to amend · ctrl+e to explain\n" +
		"\n" +
		"  ⏺ Updated file src/main.py\n" +
		"  Some working output here\n" +
		"  More working output\n" +
		"\n" +
		"  Allow Claude to execute Bash(ls -la)?\n" +
		"  ❯ 1. Yes\n" +
		"    2. No\n" +
		"\n" +
		"  Esc to cancel · Tab to amend · ctrl+e to explain\n"
	result := Parse(raw)
	if result.State != Selection {
		t.Fatalf("state = %v, want Selection", result.State)
	}
	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(result.Items))
	}
	if result.Items[0].Label != "Yes" || result.Items[1].Label != "No" {
		t.Errorf("items = %+v", result.Items)
	}
}

func TestStaleSelectionThenPrompt(t *testing.T) {
	raw := "  Allow Claude to execute Bash(rm -rf /tmp/old)?\n" +
		"  ❯ 1. Allow once\n" +
		"    2. Allow always\n" +
		"    3. Deny\n" +
		"\n" +
		"  Esc to cancel · Tab to amend · ctrl+e to explain\n" +
		"\n" +
		"  ⏺ Updated file src/main.py\n" +
		"  Some working output here\n" +
		"  More working output\n" +
		"─────────────────────────────\n" +
		"›\n" +
		"─────────────────────────────\n"
	if got := Parse(raw).State; got != Prompt {
		t.Errorf("state = %v, want Prompt", got)
	}
}
