package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/api"
	"github.com/JakeFAU/glossary-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/glossary-harvester/internal/queue/memory"
	"github.com/JakeFAU/glossary-harvester/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API that accepts glossary records",
		Long: `Serves POST /v1/records for concurrent producers, GET /v1/terms/{term_id}
and GET /v1/search for readers, plus /healthz, /readyz and /metrics. Accepted
records are queued and applied one at a time by a single worker. SIGINT or
SIGTERM stops the listener and drains the queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if addr == "" {
				addr = net.JoinHostPort("", strconv.Itoa(appInstance.Config().Server.Port))
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			return runServe(cmd.Context(), appInstance, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :server.port)")
	return cmd
}

// runServe serves on ln until ctx is done, then shuts the server down and
// waits for the worker to apply every queued record.
func runServe(ctx context.Context, appInstance App, ln net.Listener) error {
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	if err := appInstance.EnsureSchema(ctx); err != nil {
		_ = ln.Close()
		return err
	}
	p, err := appInstance.Pipeline()
	if err != nil {
		_ = ln.Close()
		return err
	}

	queue := memory.NewQueue(cfg.Queue.Depth)
	w := worker.New(queue, p, appInstance.Publisher(), worker.Config{
		ReindexTopic: cfg.Publisher.Topic,
	}, logger.Named("worker"))
	// The worker outlives ctx so records accepted before shutdown still land.
	workerDone := make(chan error, 1)
	go func() { workerDone <- w.Run(context.WithoutCancel(ctx)) }()

	apiServer := api.NewServer(queue, appInstance.Index(), api.Config{
		APIKey: cfg.Server.APIKey,
		RateLimit: ratelimit.Config{
			RPS:   cfg.Server.RateLimitRPS,
			Burst: cfg.Server.RateLimitBurst,
		},
	}, logger.Named("api"), appInstance.ReadinessChecks()...)

	srv := &http.Server{
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	if err := <-workerDone; err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
	}
	ws := w.Stats()
	logger.Info("shutdown complete",
		zap.Int64("processed", ws.Processed),
		zap.Int64("unindexed", ws.Unindexed),
		zap.Int64("rejected", ws.Failed),
	)
	return runErr
}
