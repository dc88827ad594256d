// Package config loads the server's settings: built-in defaults, seeded
// from the environment and an optional .env file, then overridden by an
// on-disk config.json. Mirrors the teacher's internal/config package
// shape (a typed Config, Load/LoadOrDefault, XDG-aware default paths, a
// Diff for hot-reload) with a JSON wire format in place of YAML.
package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the full set of server settings.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Rehydrate RehydrateConfig `json:"rehydrate"`
}

// ServerConfig controls the HTTP listener and its access rules.
type ServerConfig struct {
	Port           int      `json:"port"`
	Host           string   `json:"host"`
	AllowedOrigins []string `json:"allowed_origins"`
	AuthToken      string   `json:"auth_token"`
	MaxConnections int      `json:"max_connections"`
}

// OrchestratorConfig controls tmux pane geometry and capture behavior.
type OrchestratorConfig struct {
	PaneWidth       int    `json:"pane_width"`
	PaneHeight      int    `json:"pane_height"`
	ScrollbackLines int    `json:"scrollback_lines"`
	CaptureTail     int    `json:"capture_tail"`
	DebugOwnerDir   string `json:"debug_owner_dir"`
}

// RehydrateConfig gates which working directories are allowed to be
// rehydrated as sessions at startup.
type RehydrateConfig struct {
	// AllowedDirs is a list of glob patterns (or path prefixes). Empty means
	// allow everything, matching §9's "rehydrate_dir_whitelist" default.
	AllowedDirs []string `json:"rehydrate_dir_whitelist"`
}

// pathFields lists the JSON keys (dot-path from Config's root) that get "~"
// expanded after the config.json overrides are merged in, matching the
// original's Settings path-field expansion.
var pathFields = []string{"orchestrator.debug_owner_dir"}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "127.0.0.1",
			MaxConnections: 1000,
		},
		Orchestrator: OrchestratorConfig{
			PaneWidth:       160,
			PaneHeight:      35,
			ScrollbackLines: 2000,
			CaptureTail:     300,
			DebugOwnerDir:   ".",
		},
	}
}

// Load reads state-dir/config.json (if present) and merges it onto a
// default Config seeded from the environment and an optional .env file in
// state-dir. A missing config.json is not an error — it is equivalent to
// an empty override document.
func Load(stateDir string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(stateDir, ".env")); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	path := filepath.Join(stateDir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			expandPaths(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	expandPaths(cfg)
	for i, p := range cfg.Rehydrate.AllowedDirs {
		cfg.Rehydrate.AllowedDirs[i] = expandHome(p)
	}
	return cfg, nil
}

// LoadOrDefault is Load, but treats any read/parse failure as "use
// defaults" rather than propagating the error — used by callers that
// would rather start with a reasonable config than refuse to boot.
func LoadOrDefault(stateDir string) *Config {
	cfg, err := Load(stateDir)
	if err != nil {
		cfg = defaultConfig()
		expandPaths(cfg)
	}
	return cfg
}

// StateDir resolves the server's state directory: AGENTDECK_STATE if set,
// otherwise an XDG-aware default ($XDG_STATE_HOME or ~/.local/state,
// joined with "agentdeck").
func StateDir() string {
	if v := os.Getenv("AGENTDECK_STATE"); v != "" {
		return expandHome(v)
	}
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return filepath.Join(v, "agentdeck")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "agentdeck-state"
	}
	return filepath.Join(home, ".local", "state", "agentdeck")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTDECK_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("AGENTDECK_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("AGENTDECK_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}
}

func expandPaths(cfg *Config) {
	cfg.Orchestrator.DebugOwnerDir = expandHome(cfg.Orchestrator.DebugOwnerDir)
}

// expandHome replaces a leading "~" with the user's home directory, the
// way every path-bearing field in config.json is specified to behave.
func expandHome(p string) string {
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// loadDotEnv reads a simple KEY=VALUE .env file (blank lines and lines
// starting with "#" ignored) and calls os.Setenv for each entry not
// already present in the environment, the way pydantic_settings'
// env-file support seeds process environment before config resolution.
// Missing files are not an error.
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// Diff compares two configs and returns human-readable descriptions of
// what changed, for a future hot-reload to log.
func Diff(old, new *Config) []string {
	var changes []string
	if old.Server.Port != new.Server.Port {
		changes = append(changes, fmt.Sprintf("server.port: %d -> %d", old.Server.Port, new.Server.Port))
	}
	if old.Server.Host != new.Server.Host {
		changes = append(changes, fmt.Sprintf("server.host: %s -> %s", old.Server.Host, new.Server.Host))
	}
	if !equalStrings(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		changes = append(changes, fmt.Sprintf("server.allowed_origins: %v -> %v", old.Server.AllowedOrigins, new.Server.AllowedOrigins))
	}
	if old.Server.MaxConnections != new.Server.MaxConnections {
		changes = append(changes, fmt.Sprintf("server.max_connections: %d -> %d", old.Server.MaxConnections, new.Server.MaxConnections))
	}
	if old.Orchestrator != new.Orchestrator {
		changes = append(changes, "orchestrator: configuration changed")
	}
	if !equalStrings(old.Rehydrate.AllowedDirs, new.Rehydrate.AllowedDirs) {
		changes = append(changes, fmt.Sprintf("rehydrate.rehydrate_dir_whitelist: %v -> %v", old.Rehydrate.AllowedDirs, new.Rehydrate.AllowedDirs))
	}
	return changes
}

func equalStrings(a, b []string) bool {
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
