package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/comigor/healthchat/internal/audit"
	"github.com/comigor/healthchat/internal/config"
	"github.com/comigor/healthchat/internal/conversation"
	"github.com/comigor/healthchat/internal/logger"
	"github.com/comigor/healthchat/internal/responder"
	"github.com/comigor/healthchat/internal/server"
	"github.com/comigor/healthchat/internal/tui"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthchat",
		Short: "Healthcare AI chat with a placeholder orchestrator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger.SetLevel(cfg.Log.Level)
			return nil
		},
		SilenceUsage: true,
		RunE:         runChat,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Open the terminal chat screen",
			RunE:  runChat,
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the conversation over HTTP",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "audit [session-id]",
			Short: "List audited sessions, or the turns of one session",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runAudit,
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles what every surface needs: the store and its collaborators.
type app struct {
	store    *conversation.Store
	reply    responder.Responder
	recorder *audit.Recorder
}

func newApp() (*app, error) {
	reply, err := responder.New(cfg.Responder)
	if err != nil {
		return nil, err
	}

	opts := []conversation.Option{conversation.WithResponder(reply)}
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		recorder = audit.NewRecorder(cfg.Audit.DBPath)
		opts = append(opts, conversation.WithRecorder(recorder))
	}

	store := conversation.NewStore(opts...)
	logger.L.Info("conversation started", "session", store.SessionID(), "responder", cfg.Responder.Mode)
	return &app{store: store, reply: reply, recorder: recorder}, nil
}

func (a *app) Close() {
	if err := a.reply.Close(); err != nil {
		logger.L.Warn("responder close error", "error", err)
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			logger.L.Warn("audit close error", "error", err)
		}
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	// The chat screen owns the terminal.
	var out io.Writer = io.Discard
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	logger.SetOutput(out)

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return tui.Run(ctx, a.store, cfg.UI, a.reply.Pending)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, cfg.Server.Addr(), server.New(a.store, cfg.UI).Router())
}

func runAudit(cmd *cobra.Command, args []string) error {
	if !cfg.Audit.Enabled {
		return fmt.Errorf("audit trail is disabled (set audit.enabled in config.yaml)")
	}
	rec := audit.NewRecorder(cfg.Audit.DBPath)
	defer rec.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if len(args) == 0 {
		sessions, err := rec.Sessions()
		if err != nil {
			return err
		}
		return enc.Encode(sessions)
	}

	entries, err := rec.List(args[0])
	if err != nil {
		return err
	}
	return enc.Encode(entries)
}

