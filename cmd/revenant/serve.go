package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hollowlabs/revenant/config"
	"github.com/hollowlabs/revenant/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/websocket gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		eng, cleanup, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := server.New(eng, server.Config{
			Addr:               cfg.Addr(),
			AuthToken:          cfg.Server.AuthToken,
			AllowedOrigins:     cfg.Server.AllowedOrigins,
			RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		})

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			log.Printf("[SERVER] Received %s, shutting down", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}
