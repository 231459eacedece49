package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/PabloGalante/chatsync/internal/adapters/http"
	"github.com/PabloGalante/chatsync/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync engine behind the local HTTP bridge",
		Long: `Activate the sync engine and expose it over HTTP for a rendering shell.

Example:
  chatsync serve
  CHATSYNC_MODE=gcp CHATSYNC_GCP_PROJECT=my-proj chatsync serve --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$CHATSYNC_PORT)")
	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, addr string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = ":" + cfg.Port
	}
	log := observability.Component("serve")

	app, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("shutdown", "err", err)
		}
	}()

	if err := app.Engine.Activate(ctx); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	srv := &http.Server{
		Addr: addr,
		Handler: httpadapter.NewServer(httpadapter.Deps{
			Engine:   app.Engine,
			Composer: app.Composer,
			Session:  app.Session,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
