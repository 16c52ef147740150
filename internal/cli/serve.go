package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/platetemp/internal/api"
	"github.com/banshee-data/platetemp/internal/monitoring"
)

const shutdownTimeout = 10 * time.Second

func (c *CLI) serveCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				c.cfg.Listen = &listen
			}
			return c.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", ":8080", "address to listen on")
	return cmd
}

// runServe serves until ctx is cancelled, then drains in-flight requests.
func (c *CLI) runServe(ctx context.Context) error {
	logger := monitoring.LoggerFromContext(ctx)
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	database, err := c.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	server, err := api.NewServer(api.ServerConfig{
		Config:  c.cfg,
		DB:      database,
		Metrics: monitoring.NewMetrics(),
		Logger:  logger,
		Clock:   c.clock,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.cfg.GetListen(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "db", c.cfg.GetDatabase())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
