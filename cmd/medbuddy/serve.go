package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/medbuddy/internal/config"
	"github.com/alfredjeanlab/medbuddy/internal/server"
	"github.com/alfredjeanlab/medbuddy/internal/session"
	"github.com/alfredjeanlab/medbuddy/internal/store"
	mbsync "github.com/alfredjeanlab/medbuddy/internal/sync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the medbuddy HTTP and gRPC servers",
	GroupID: "system",
	// Override PersistentPreRunE so we don't open a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig() },
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		sess, err := session.Open(cmd.Context(), cfg,
			session.WithLogger(logger),
			session.WithRegisterer(reg),
		)
		if err != nil {
			return err
		}

		srv := server.New(sess,
			server.WithGatherer(reg),
			server.WithLogger(logger),
			server.WithRecorder(sess.Recorder()),
		)
		grpcServer, healthServer := srv.NewGRPCServer(cfg.AuthToken)

		// Start gRPC listener.
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			sess.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startSync(cmd.Context(), cfg, sess.Store())

		if cfg.AuthToken == "" {
			logger.Warn("authentication disabled (auth_token not set)")
		}
		logger.Info("medbuddy server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"store", cfg.Store.Backend,
			"model", cfg.Model.Provider,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		healthServer.Shutdown()

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if scheduler != nil {
			// Final backup after the last write.
			scheduler.SyncOnce(shutdownCtx)
		}
		if err := sess.Close(); err != nil {
			logger.Error("error closing session", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// startSync starts the backup scheduler when an interval and at least one
// destination are configured.
func startSync(ctx context.Context, cfg *config.Config, s store.Reader) *mbsync.Scheduler {
	if cfg.Sync.Interval <= 0 {
		return nil
	}

	var dests []mbsync.Destination
	if cfg.Sync.S3Bucket != "" {
		s3Dest, err := mbsync.NewS3Destination(ctx, mbsync.S3Config{
			Bucket:   cfg.Sync.S3Bucket,
			Key:      cfg.Sync.S3Key,
			Region:   cfg.Sync.S3Region,
			Endpoint: cfg.Sync.S3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.Sync.S3Bucket, "key", cfg.Sync.S3Key)
		}
	}
	if cfg.Sync.File != "" {
		dests = append(dests, mbsync.NewFileDestination(cfg.Sync.File))
		logger.Info("sync file destination enabled", "file", cfg.Sync.File)
	}
	if len(dests) == 0 {
		return nil
	}

	scheduler := mbsync.NewScheduler(s, dests, cfg.Sync.Interval, logger)
	scheduler.Start()
	logger.Info("sync scheduler started", "interval", cfg.Sync.Interval)
	return scheduler
}
