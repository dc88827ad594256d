// Command agentdeckd runs the session orchestrator and its HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/agentkind"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/httpapi"
	"github.com/agentdeck/agentdeck/internal/logging"
	"github.com/agentdeck/agentdeck/internal/orchestrator"
	"github.com/agentdeck/agentdeck/internal/outputlog"
	"github.com/agentdeck/agentdeck/internal/recentdirs"
	"github.com/agentdeck/agentdeck/internal/terminal"
)

var (
	version     = "dev"
	stateDirFlag string
	portFlag    int
	logLevel    string
	prettyLogs  bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "agentdeckd",
		Short:   "Multiplexing control plane for interactive terminal coding agents",
		Version: version,
		RunE:    runServe,
	}
	root.PersistentFlags().StringVar(&stateDirFlag, "state-dir", "", "Override the state directory (defaults to AGENTDECK_STATE or the XDG state dir)")
	root.PersistentFlags().IntVar(&portFlag, "port", 0, "Override the configured HTTP port")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "Write human-readable logs instead of JSON")
	return root
}

func runServe(cmd *cobra.Command, args []string) error {
	logging.Init(logging.Config{
		Level:  logging.ParseLevel(logLevel),
		Pretty: prettyLogs,
	})

	stateDir := stateDirFlag
	if stateDir == "" {
		stateDir = config.StateDir()
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("agentdeckd: create state dir %s: %w", stateDir, err)
	}

	cfg, err := config.Load(stateDir)
	if err != nil {
		return fmt.Errorf("agentdeckd: load config: %w", err)
	}
	if portFlag > 0 {
		cfg.Server.Port = portFlag
	}

	logging.Logger.Info().Str("version", version).Str("state_dir", stateDir).Msg("starting_up")

	backend, err := terminal.NewTmux()
	if err != nil {
		return fmt.Errorf("agentdeckd: %w", err)
	}

	log, err := outputlog.Open(filepath.Join(stateDir, "output.db"))
	if err != nil {
		return fmt.Errorf("agentdeckd: open output log: %w", err)
	}
	defer log.Close()

	recent, err := recentdirs.Open(filepath.Join(stateDir, "recent_dirs.txt"))
	if err != nil {
		return fmt.Errorf("agentdeckd: open recent dirs: %w", err)
	}

	opts := orchestrator.Options{
		PaneWidth:       cfg.Orchestrator.PaneWidth,
		PaneHeight:      cfg.Orchestrator.PaneHeight,
		ScrollbackLines: cfg.Orchestrator.ScrollbackLines,
		CaptureTail:     cfg.Orchestrator.CaptureTail,
	}
	rehydrate := orchestrator.RehydrateFilter{AllowedDirs: cfg.Rehydrate.AllowedDirs}
	orch := orchestrator.New(backend, log, recent, opts, rehydrate, cfg.Orchestrator.DebugOwnerDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rehydrateSessions(ctx, orch, backend, log); err != nil {
		logging.Logger.Warn().Err(err).Msg("rehydrate_failed")
	}

	go orch.RunCaptureLoop(ctx, 2*time.Second)

	srv := httpapi.New(cfg.Server, orch)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Logger.Info().Msg("shutting_down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("agentdeckd: server error: %w", err)
	}
	return nil
}

// rehydrateSessions reconstructs the session registry after a restart: tmux
// sessions still running are re-attached live, and session ids found only
// in the output log are registered dead so their history stays reachable.
func rehydrateSessions(ctx context.Context, orch *orchestrator.Orchestrator, backend *terminal.Tmux, log *outputlog.Log) error {
	existing, err := backend.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list tmux sessions: %w", err)
	}

	live := make(map[string]bool, len(existing))
	for _, id := range existing {
		if !strings.HasPrefix(id, "agent-") {
			continue
		}
		workingDir := backend.SessionPath(ctx, id)
		kind := inferAgentKind(id)
		if orch.RegisterExistingSession(id, workingDir, kind) {
			live[id] = true
			logging.Logger.Info().Str("session", id).Str("working_dir", workingDir).Msg("rehydrated_live_session")
		} else {
			logging.Logger.Warn().Str("session", id).Str("working_dir", workingDir).Msg("rehydrate_rejected_by_whitelist")
		}
	}

	loggedIDs, err := log.SessionIDs()
	if err != nil {
		return fmt.Errorf("list logged session ids: %w", err)
	}
	for _, id := range loggedIDs {
		if live[id] {
			continue
		}
		endedAt, err := log.LatestTS(id)
		if err != nil {
			logging.Logger.Debug().Err(err).Str("session", id).Msg("no_latest_ts_for_dead_session")
			continue
		}
		orch.RegisterDeadSession(id, "(unknown)", endedAt, inferAgentKind(id))
	}
	return nil
}

// inferAgentKind recovers the agent kind from a session id's
// "agent-<kind>-..." prefix, defaulting to Claude when no known kind
// matches (mirroring the original's permissive fallback).
func inferAgentKind(sessionID string) agentkind.Kind {
	rest := strings.TrimPrefix(sessionID, "agent-")
	for _, kind := range []agentkind.Kind{agentkind.Claude, agentkind.Codex} {
		if strings.HasPrefix(rest, string(kind)+"-") {
			return kind
		}
	}
	return agentkind.Claude
}
