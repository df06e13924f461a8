package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskbook/internal/handlers"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, logger, err := openStore(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			if addr != "" {
				cfg.Server.Addr = addr
			}

			// Event streams only end when their request context does, so
			// requests run under a context that is cancelled on shutdown.
			baseCtx, cancelRequests := context.WithCancel(context.Background())
			defer cancelRequests()

			server := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           handlers.New(s, logger).Routes(),
				ReadHeaderTimeout: 15 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return baseCtx },
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server listening", "addr", cfg.Server.Addr, "backend", cfg.Storage.Backend)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			cancelRequests()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
