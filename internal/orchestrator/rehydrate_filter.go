package orchestrator

import "path/filepath"

// RehydrateFilter gates which tmux sessions discovered at startup are
// adopted back into the registry. An operator who only ever points
// agentdeckd at a handful of project roots can restrict rehydration to
// those roots, so a stray `agent-`-prefixed tmux session from an unrelated
// project doesn't get attached.
type RehydrateFilter struct {
	AllowedDirs []string // glob patterns; empty means allow everything
}

// Allowed reports whether a session rooted at workingDir should be
// rehydrated. An empty working directory (path could not be determined) is
// always allowed, matching the orchestrator's existing "unknown path is not
// a reason to refuse" stance elsewhere.
func (f *RehydrateFilter) Allowed(workingDir string) bool {
	if workingDir == "" || len(f.AllowedDirs) == 0 {
		return true
	}
	for _, pattern := range f.AllowedDirs {
		if matchPathOrParent(pattern, workingDir) {
			return true
		}
	}
	return false
}

// matchPathOrParent checks if pattern matches path or any of its parent
// directories, so a pattern like "/home/user/*" also matches deeply nested
// paths such as "/home/user/work/project-a" via its parent
// "/home/user/work".
func matchPathOrParent(pattern, path string) bool {
	for p := path; p != "." && p != "" && p != filepath.Dir(p); p = filepath.Dir(p) {
		if matched, _ := filepath.Match(pattern, p); matched {
			return true
		}
	}
	return false
}
