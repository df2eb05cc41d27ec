package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-faceverify/internal/log"
	"github.com/teslashibe/go-faceverify/pkg/web"
)

const (
	warmTimeout     = 2 * time.Minute
	shutdownTimeout = 5 * time.Second
)

func serveCmd(g *globals) *cobra.Command {
	var port string
	var accessLog bool

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := g.cfg
			if port != "" {
				cfg.Port = port
			}
			logger := log.Component("serve")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, cleanup, err := newService(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := cleanup(); err != nil {
					logger.Warn("cleanup failed", "error", err)
				}
			}()

			warmCtx, cancel := context.WithTimeout(ctx, warmTimeout)
			svc.Warm(warmCtx)
			cancel()

			srv := web.NewServer(svc, web.Config{
				Port:           cfg.Port,
				AllowedOrigins: cfg.AllowedOrigins,
				RateLimit:      cfg.RateLimit,
				AccessLog:      accessLog,
			}, web.WithLogger(log.L()))

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			logger.Info("face verification service started",
				"port", cfg.Port,
				"classifier", cfg.Classifier.Kind,
				"face_gate", cfg.Classifier.YuNetModelPath != "")

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	c.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	c.Flags().BoolVar(&accessLog, "access-log", false, "log every request")
	return c
}
