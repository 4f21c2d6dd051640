// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/planthealth/internal/knowledge"
	"github.com/jeranaias/planthealth/internal/logging"
	"github.com/jeranaias/planthealth/internal/server"
)

func (app *App) newServeCommand() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the diagnosis and chat API until interrupted.

Endpoints:
  GET  /api/health
  GET  /api/crops
  POST /api/analyze-crop
  POST /api/chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				if port < 1 || port > 65535 {
					return &ValidationError{Field: "port", Value: strconv.Itoa(port), Reason: "must be between 1 and 65535"}
				}
				cfg.Server.Port = port
			}

			kb, err := openKnowledge(cfg)
			if err != nil {
				return err
			}
			engine, err := buildEngine(cfg, kb)
			if err != nil {
				return err
			}
			store, err := openSessions(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Knowledge.Watch && cfg.Knowledge.OverridePath != "" {
				go watchKnowledge(ctx, kb, cfg.Knowledge.OverridePath)
			}

			srv := server.New(cfg.Server, engine, buildAssistant(store)).
				WithLogger(logging.For("server")).
				WithVersion(Version)
			if err := srv.Run(ctx); err != nil {
				return NewCommandError("serve", "run server", "server stopped with an error", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

// watchKnowledge hot-reloads the knowledge base until ctx is done.
func watchKnowledge(ctx context.Context, kb *knowledge.Store, path string) {
	if err := kb.Watch(ctx, path); err != nil && ctx.Err() == nil {
		logging.For("knowledge").Error("KB_WATCH_FAILED", "path", path, "error", err)
	}
}
