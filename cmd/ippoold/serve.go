package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zinrai/ippool-go/internal/interface/api"
	"github.com/zinrai/ippool-go/internal/logger"
)

func serveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrateFirst, err := cmd.Flags().GetBool("migrate")
			if err != nil {
				return err
			}
			return a.serve(migrateFirst)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply database migrations before serving")
	return cmd
}

func (a *app) serve(migrateFirst bool) error {
	ctx, stop := signal.NotifyContext(a.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := a.openRepository(migrateFirst)
	if err != nil {
		return err
	}
	defer closeRepo()

	uc, closePublisher, err := a.newUseCase(repo)
	if err != nil {
		return err
	}
	defer closePublisher()

	handler := api.NewRouter(api.NewIPAMHandler(uc), api.RouterOptions{
		Prefix:      a.cfg.RoutePrefix,
		CORSOrigins: a.cfg.CORSOrigins,
		Metrics:     api.NewMetrics(),
	})

	listener, err := net.Listen("tcp", a.cfg.Address)
	if err != nil {
		return errors.Wrap(err, "Could not setup listener")
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts inherit the configured logger.
		BaseContext: func(net.Listener) context.Context { return a.ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.G(ctx).WithField("address", listener.Addr().String()).Info("Listening")
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "HTTP server failed")
	case <-ctx.Done():
	}

	logger.G(a.ctx).Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown HTTP server")
	}
	return nil
}
