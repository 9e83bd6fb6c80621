package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"letscrap-backend/internal/authz"
	"letscrap-backend/internal/chat"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/events"
	"letscrap-backend/internal/logging"
	"letscrap-backend/internal/server"
	"letscrap-backend/internal/supervisor"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the REST API and the chat socket server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.Init(cfg); err != nil {
			return err
		}

		enf, err := authz.NewEnforcer()
		if err != nil {
			return err
		}

		bus := events.NewBus()
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Warn().Err(err).Msg("event bus close failed")
			}
		}()

		hub := chat.NewHub()
		app := server.New(cfg, server.Deps{Enforcer: enf, Publisher: bus})
		chatSrv := &http.Server{
			Addr:              ":" + cfg.ChatPort,
			Handler:           chat.NewServer(cfg, hub).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
		tree.AddMessagingService(hub)
		tree.AddMessagingService(chat.NewRelay(bus, hub))
		tree.AddAPIService(supervisor.NewListenerService("api",
			&supervisor.FiberListener{App: app, Addr: ":" + cfg.HTTPPort}, 10*time.Second))
		tree.AddAPIService(supervisor.NewListenerService("chat", chatSrv, 10*time.Second))

		logging.Info().
			Str("http_port", cfg.HTTPPort).
			Str("chat_port", cfg.ChatPort).
			Msg("letscrap starting")

		err = tree.Serve(cmd.Context())
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logging.Info().Msg("letscrap stopped")
		return nil
	},
}
