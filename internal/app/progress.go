package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lenslesscam/lenslessgo/internal/ctxlog"
)

// healthHandler reports liveness for the progress server.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// progressHandler serves a JSON snapshot of the current run.
func (a *App) progressHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Progress endpoint hit.", "remote_addr", r.RemoteAddr)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.progress.Snapshot()); err != nil {
		a.logger.Error("Failed to encode progress snapshot", "error", err)
	}
}

// startProgressServer initializes and runs the progress HTTP server.
func (a *App) startProgressServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring progress server.")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/progress", a.progressHandler)

	addr := fmt.Sprintf(":%d", a.cfg.ProgressPort)
	a.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Run the server in a goroutine so it doesn't block.
	go func() {
		logger.Info("🩺 Progress server starting", "address", fmt.Sprintf("http://localhost%s/progress", addr))
		// ListenAndServe returns ErrServerClosed on graceful shutdown; only
		// other errors are worth reporting.
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Progress server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeProgressServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Closing progress server...")

	if a.httpServer == nil {
		logger.Debug("Progress server was not running.")
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down progress server...")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Progress server shutdown failed", "error", err)
		return
	}

	logger.Debug("Progress server shut down gracefully.")
}
