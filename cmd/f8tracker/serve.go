package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xelth-com/f8tracker/internal/buildinfo"
	"github.com/xelth-com/f8tracker/internal/handlers"
	"github.com/xelth-com/f8tracker/internal/metrics"
	"github.com/xelth-com/f8tracker/internal/middleware"
	"github.com/xelth-com/f8tracker/internal/services/feedsync"
	"github.com/xelth-com/f8tracker/internal/websocket"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the periodic feed sync",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buildinfo.StartTime = time.Now().UTC().Format(time.RFC3339)
	reg := metrics.NewRegistry()

	// The hub needs the engine for inbound edits and the sync service needs
	// the hub for pushes, so the hub is built first and handed its editor
	// through a small forwarder.
	editor := &lateEditor{}
	hub := websocket.NewHub(editor, logger.Named("ws"))
	hub.OnClientCount(func(n int) { reg.WSClients.Set(float64(n)) })

	a, err := openApp(ctx, reg, feedsync.WithNotifier(hub))
	if err != nil {
		return err
	}
	defer a.Close()
	editor.Editor = a.engine
	reg.Orders.Set(float64(a.engine.Len()))

	jw, err := openJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	recorder := newEditRecorder(jw, hub, reg, logger.Named("journal"))
	defer recorder.Close()
	a.engine.OnEdit(recorder.Record)
	logger.Info("edit journal ready", zap.Int("sinks", jw.Len()))

	go hub.Run()
	defer hub.Stop()

	router := handlers.NewRouter(handlers.Deps{
		Orders:  a.engine,
		Sync:    a.sync,
		Hub:     hub,
		Metrics: reg,
		Logger:  logger.Named("http"),
	})
	handler := middleware.Recover(logger)(middleware.RequestLogger(logger.Named("http"))(router))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.sync.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.NodeEnv),
			zap.String("commit", buildinfo.CommitHash))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	a.sync.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	// Hijacked websocket connections outlive Shutdown. Stop waits for their
	// edits before the journal and the store are closed.
	hub.Stop()
	if err := recorder.Close(); err != nil {
		logger.Error("journal close failed", zap.Error(err))
	}
	return nil
}
