package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vk/newsdag/internal/ctxlog"
	"github.com/vk/newsdag/internal/runstore"
)

// healthHandler reports that the process is up.
func (app *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(app.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runsHandler lists run history, newest first. ?limit=N bounds the list.
func (app *App) runsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := app.runs.List(r.Context(), limit)
	if err != nil {
		ctxlog.FromContext(app.ctx).Error("Failed to list runs.", "error", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []runstore.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// runHandler returns one run by id.
func (app *App) runHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := app.runs.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, runstore.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		ctxlog.FromContext(app.ctx).Error("Failed to get run.", "error", err)
		http.Error(w, "failed to get run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (app *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", app.healthHandler)
	mux.HandleFunc("GET /runs", app.runsHandler)
	mux.HandleFunc("GET /runs/{id}", app.runHandler)
	return mux
}

// healthCheckServer initializes and runs the health check HTTP server.
func (app *App) healthCheckServer() {
	logger := ctxlog.FromContext(app.ctx)
	logger.Debug("Configuring health check server.")
	if app.config.HealthcheckPort <= 0 {
		logger.Warn("Health check server not started: disabled")
		return
	}

	addr := fmt.Sprintf(":%d", app.config.HealthcheckPort)
	app.httpServer = &http.Server{
		Addr:              addr,
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		// ListenAndServe returns ErrServerClosed on graceful shutdown.
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
}

func (app *App) closeHealthCheckServer() error {
	logger := ctxlog.FromContext(app.ctx)
	logger.Debug("Closing health check server...")

	if app.httpServer == nil {
		logger.Debug("Health check server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(app.ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down health check server...")
	if err := app.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	app.httpServer = nil

	logger.Debug("Health check server shut down gracefully.")
	return nil
}
