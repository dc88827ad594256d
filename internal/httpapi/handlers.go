// Package httpapi translates the HTTP surface onto orchestrator calls,
// renders captured pane text to HTML, and pushes session-registry
// snapshots over an additive WebSocket channel.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/agentdeck/agentdeck/internal/agentkind"
	"github.com/agentdeck/agentdeck/internal/logging"
	"github.com/agentdeck/agentdeck/internal/notify"
	"github.com/agentdeck/agentdeck/internal/orchestrator"
	"github.com/agentdeck/agentdeck/internal/uistate"
)

func sessionIDParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

const maxHistoryLimit = 200

// httpError is a plain status+message pair used for shim-local failures
// that never reach the orchestrator (bad request bodies, unsupported
// content types).
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

type sessionCreateBody struct {
	WorkingDir string         `json:"working_dir"`
	Title      string         `json:"title,omitempty"`
	AgentType  agentkind.Kind `json:"agent_type,omitempty"`
}

type sendInputBody struct {
	Text string `json:"text"`
}

type sendSelectionBody struct {
	ItemNumber   int    `json:"item_number"`
	FreeformText string `json:"freeform_text,omitempty"`
}

type debugRequestBody struct {
	Description string `json:"description"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Handlers holds the orchestrator and broadcaster a request is dispatched
// against. Methods are chi-compatible http.HandlerFuncs.
type Handlers struct {
	orch      *orchestrator.Orchestrator
	broadcast *Broadcaster
	notifier  notify.StateNotifier

	lastStateMu sync.Mutex
	lastState   map[string]uistate.State
}

// NewHandlers constructs a Handlers bound to orch. broadcast may be nil —
// Publish is then skipped (tests can omit the WebSocket channel entirely).
// Notifications go to notify.NoOp{} unless a real StateNotifier is wired in
// with SetNotifier.
func NewHandlers(orch *orchestrator.Orchestrator, broadcast *Broadcaster) *Handlers {
	return &Handlers{
		orch:      orch,
		broadcast: broadcast,
		notifier:  notify.NoOp{},
		lastState: make(map[string]uistate.State),
	}
}

// SetNotifier replaces the StateNotifier invoked on live-output state
// transitions.
func (h *Handlers) SetNotifier(n notify.StateNotifier) {
	h.notifier = n
}

// notifyIfStateChanged tells the notifier about id's new parsed state, but
// only the first time it's observed to differ from the previous poll's
// state — a no-op notifier costs nothing either way, but a real one
// shouldn't be spammed on every unchanged poll.
func (h *Handlers) notifyIfStateChanged(id string, parsed uistate.ParsedOutput) {
	h.lastStateMu.Lock()
	prev, seen := h.lastState[id]
	h.lastState[id] = parsed.State
	h.lastStateMu.Unlock()

	if !seen || prev != parsed.State {
		h.notifier.NotifyStateChange(id, parsed)
	}
}

func (h *Handlers) publish(r *http.Request) {
	if h.broadcast == nil {
		return
	}
	h.broadcast.Publish(h.orch.ListSessions(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError translates an orchestrator.Error's Kind (or a local
// httpError) into a status code, matching §7's error-kind-to-status
// mapping.
func writeError(w http.ResponseWriter, err error) {
	var he *httpError
	if errors.As(err, &he) {
		http.Error(w, he.message, he.status)
		return
	}

	var oe *orchestrator.Error
	if errors.As(err, &oe) {
		http.Error(w, oe.Message, kindToStatus(oe.Kind))
		return
	}

	logging.Logger.Error().Err(err).Msg("unhandled_error")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func kindToStatus(k orchestrator.Kind) int {
	switch k {
	case orchestrator.KindNotFound:
		return http.StatusNotFound
	case orchestrator.KindBadInput:
		return http.StatusBadRequest
	case orchestrator.KindConflict:
		return http.StatusConflict
	case orchestrator.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CreateSession handles POST /sessions.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body sessionCreateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &httpError{status: http.StatusBadRequest, message: "invalid request body"})
		return
	}
	if body.WorkingDir == "" {
		writeError(w, &httpError{status: http.StatusBadRequest, message: "working_dir is required"})
		return
	}
	kind := body.AgentType
	if kind == "" {
		kind = agentkind.Claude
	}

	info, err := h.orch.CreateSession(r.Context(), body.WorkingDir, kind, body.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publish(r)
	writeJSON(w, http.StatusCreated, info)
}

// ListSessions handles GET /sessions.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.ListSessions(r.Context()))
}

// GetSession handles GET /sessions/{id}.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := sessionIDParam(r)
	info, err := h.orch.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// SlashCommands handles GET /sessions/slash-commands?session_id=.
func (h *Handlers) SlashCommands(w http.ResponseWriter, r *http.Request) {
	kind := agentkind.Claude
	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		info, err := h.orch.GetSession(r.Context(), sessionID)
		if err == nil {
			kind = info.AgentKind
		}
	}
	commands, err := h.orch.SlashCommands(kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commands)
}

// RecentDirs handles GET /sessions/recent-dirs.
func (h *Handlers) RecentDirs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.RecentDirs())
}

// SendInput handles POST /sessions/{id}/input.
func (h *Handlers) SendInput(w http.ResponseWriter, r *http.Request) {
	id := sessionIDParam(r)
	var body sendInputBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &httpError{status: http.StatusBadRequest, message: "invalid request body"})
		return
	}
	if err := h.orch.SendInput(r.Context(), id, body.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "sent"})
}

// SendSelection handles POST /sessions/{id}/select.
func (h *Handlers) SendSelection(w http.ResponseWriter, r *http.Request) {
	id := sessionIDParam(r)
	var body sendSelectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &httpError{status: http.StatusBadRequest, message: "invalid request body"})
		return
	}
	if err := h.orch.SendSelection(r.Context(), id, body.ItemNumber, body.FreeformText); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "selected"})
}

var allowedImageTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
}

// PasteImage handles POST /sessions/{id}/image: a multipart upload of an
// image, written to a scratch file and handed to the orchestrator's
// clipboard-paste path, mirroring the original's write-then-delete
// temp-file handling.
func (h *Handlers) PasteImage(w http.ResponseWriter, r *http.Request) {
	id := sessionIDParam(r)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, &httpError{status: http.StatusBadRequest, message: "missing file"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	format, ok := allowedImageTypes[contentType]
	if !ok {
		writeError(w, &httpError{status: http.StatusBadRequest, message: "unsupported image type: " + contentType})
		return
	}

	ext := "png"
	if format == "jpeg" {
		ext = "jpg"
	}
	tmpDir := filepath.Join(os.TempDir(), "agentdeck-paste")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		writeError(w, &httpError{status: http.StatusInternalServerError, message: "could not prepare scratch dir"})
		return
	}
	tmpPath := filepath.Join(tmpDir, "paste-"+id+"."+ext)
	defer os.Remove(tmpPath)

	dst, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, &httpError{status: http.StatusInternalServerError, message: "could not create scratch file"})
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, &httpError{status: http.StatusInternalServerError, message: "could not write scratch file"})
		return
	}
	dst.Close()

	if err := h.orch.PasteImage(r.Context(), id, tmpPath, format); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "pasted"})
}

// KillSession handles DELETE /sessions/{id}.
func (h *Handlers) KillSession(w http.ResponseWriter, r *http.Request) {
	id := sessionIDParam(r)
	verb, err := h.orch.KillSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publish(r)
	writeJSON(w, http.StatusOK, statusResponse{Status: verb})
}

// StartDebugSession handles POST /sessions/{id}/debug.
func (h *Handlers) StartDebugSession(w http.ResponseWriter, r *http.Request) {
	id := sessionIDParam(r)
	var body debugRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &httpError{status: http.StatusBadRequest, message: "invalid request body"})
		return
	}
	info, err := h.orch.StartDebugSession(r.Context(), id, body.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publish(r)
	writeJSON(w, http.StatusCreated, info)
}

// GetOutput handles GET /sessions/{id}/output. mode=live (default) returns
// a rendered-HTML fragment plus an OOB data-state element; mode=history
// returns JSON chunks from the output log.
func (h *Handlers) GetOutput(w http.ResponseWriter, r *http.Request) {
	id := sessionIDParam(r)
	q := r.URL.Query()

	if q.Get("mode") == "history" {
		h.getHistory(w, r, id)
		return
	}

	info, err := h.orch.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !info.IsAlive {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<div class="text-center text-base-content/50 py-8">Session ended</div>`)
		return
	}

	output, err := h.orch.CaptureOutput(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	force := q.Get("force") == "true" || q.Get("force") == "1"
	if !force && !output.Changed && output.Content != "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	parsed, err := h.orch.ParseOutput(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if parsed.AutoResponse != "" {
		logging.Logger.Info().Str("session", id).Str("response", parsed.AutoResponse).Msg("auto_response")
		if err := h.orch.SendRawKeys(r.Context(), id, parsed.AutoResponse); err != nil {
			logging.Logger.Warn().Err(err).Str("session", id).Msg("auto_response_failed")
		}
	}
	h.notifyIfStateChanged(id, parsed)

	body := `<pre id="terminal-output">` + terminalToHTML(output.Content) + `</pre>`
	stateJSON, err := json.Marshal(parsed)
	if err != nil {
		writeError(w, &httpError{status: http.StatusInternalServerError, message: "could not encode ui state"})
		return
	}
	oob := `<div id="ui-state-data" hx-swap-oob="true" data-state="` + htmlAttrEscape(string(stateJSON)) + `" style="display:none"></div>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, body+oob)
}

func (h *Handlers) getHistory(w http.ResponseWriter, r *http.Request, id string) {
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var before *float64
	if v := q.Get("before"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			before = &f
		}
	}

	page, err := h.orch.ReadHistory(id, before, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	type chunkJSON struct {
		TS      float64 `json:"ts"`
		Content string  `json:"content"`
	}
	rendered := make([]chunkJSON, len(page.Chunks))
	for i, c := range page.Chunks {
		rendered[i] = chunkJSON{TS: c.Timestamp, Content: terminalToHTML(c.Content)}
	}

	writeJSON(w, http.StatusOK, struct {
		Chunks     []chunkJSON `json:"chunks"`
		EarliestTS *float64    `json:"earliest_ts"`
	}{Chunks: rendered, EarliestTS: page.EarliestTS})
}

func htmlAttrEscape(s string) string {
	var b []byte
	for _, r := range s {
		switch r {
		case '"':
			b = append(b, "&quot;"...)
		case '&':
			b = append(b, "&amp;"...)
		case '<':
			b = append(b, "&lt;"...)
		case '>':
			b = append(b, "&gt;"...)
		default:
			b = append(b, string(r)...)
		}
	}
	return string(b)
}
