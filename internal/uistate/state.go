package uistate

import "encoding/json"

// State is the detected UI state of a captured terminal pane.
type State int

const (
	Working State = iota
	Selection
	Prompt
)

var stateNames = map[State]string{
	Working:   "working",
	Selection: "selection",
	Prompt:    "prompt",
}

var stateFromName = map[string]State{
	"working":   Working,
	"selection": Selection,
	"prompt":    Prompt,
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := stateFromName[name]; ok {
		*s = v
	}
	return nil
}

// SelectionItem is a single numbered option in a selection list.
type SelectionItem struct {
	Number      int    `json:"number"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	IsFreeform  bool   `json:"isFreeform,omitempty"`
}

// ParsedOutput is the structured result of parsing a captured pane.
type ParsedOutput struct {
	State          State           `json:"state"`
	Items          []SelectionItem `json:"items,omitempty"`
	SelectedIndex  int             `json:"selectedIndex"`
	ArrowNavigable bool            `json:"arrowNavigable"`
	Question       string          `json:"question,omitempty"`
	AutoResponse   string          `json:"autoResponse,omitempty"`
}
