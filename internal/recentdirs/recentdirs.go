// Package recentdirs tracks the most recently used session working
// directories, so session-creation UIs can offer a quick-pick list instead
// of making every operator retype a path.
package recentdirs

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// MaxEntries caps how many directories are remembered.
const MaxEntries = 10

// Store persists a deduplicated, most-recent-first list of directories to a
// flat newline-delimited file.
type Store struct {
	mu   sync.Mutex
	path string
	home string
	dirs []string
}

// Open loads the recent-dirs list from path, if it exists. A missing file is
// not an error — the store just starts empty.
func Open(path string) (*Store, error) {
	home, _ := os.UserHomeDir()
	s := &Store{path: path, home: home}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("recentdirs: read %s: %w", path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.dirs = append(s.dirs, s.expandHome(line))
	}
	return s, nil
}

// List returns the recent directories, home-relativized (e.g.
// "/home/me/project" becomes "~/project"), most recent first.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.dirs))
	for i, d := range s.dirs {
		out[i] = s.relativizeHome(d)
	}
	return out
}

// Record moves dir to the front of the list, deduplicating and trimming to
// MaxEntries, then persists the result.
func (s *Store) Record(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := s.dirs[:0:0]
	for _, d := range s.dirs {
		if d != dir {
			filtered = append(filtered, d)
		}
	}
	s.dirs = append([]string{dir}, filtered...)
	if len(s.dirs) > MaxEntries {
		s.dirs = s.dirs[:MaxEntries]
	}

	lines := make([]string, len(s.dirs))
	for i, d := range s.dirs {
		lines[i] = s.relativizeHome(d)
	}
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(s.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("recentdirs: write %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) expandHome(p string) string {
	if s.home == "" || p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	if p == "~" {
		return s.home
	}
	return s.home + p[1:]
}

func (s *Store) relativizeHome(p string) string {
	if s.home == "" {
		return p
	}
	if p == s.home {
		return "~"
	}
	if strings.HasPrefix(p, s.home+"/") {
		return "~" + p[len(s.home):]
	}
	return p
}
