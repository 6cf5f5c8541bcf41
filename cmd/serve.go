package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/extract"
	"github.com/sells-group/leads-cli/internal/monitoring"
	"github.com/sells-group/leads-cli/internal/queue"
	"github.com/sells-group/leads-cli/internal/server"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lead extraction HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		q := queue.New(st,
			queue.WithWorkers(cfg.Queue.Workers),
			queue.WithCapacity(cfg.Queue.Capacity),
		)
		q.Start(ctx)
		defer q.Stop()

		checker := monitoring.NewChecker(
			monitoring.NewCollector(st, cfg.Monitoring.StaleAfter),
			st,
			cfg.Monitoring.CheckInterval,
			cfg.Monitoring.Lookback,
			cfg.Monitoring.Sweep && cfg.Monitoring.StaleAfter > 0,
		)
		go checker.Run(ctx)

		srv, err := server.New(cfg, st,
			server.WithQueue(q),
			server.WithSharedProvider(extract.NewSharedProvider(cfg)),
		)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		return runServer(ctx, fmt.Sprintf(":%d", port), srv.Handler())
	},
}

// runServer serves h on addr until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return eris.Wrap(err, "server listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
