// Package ui exposes the simulation engine over HTTP: basis construction,
// conditional augmentation, whole-dataset simulation and run reports.
package ui

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"timbersim/internal/rng"
	"timbersim/ports"
)

// App represents the HTTP application
type App struct {
	router  *chi.Mux
	bases   ports.BasisRepository
	runs    ports.RunRepository
	streams ports.RNGPort
}

// Config holds application configuration
type Config struct {
	Port string
}

// NewApp creates the HTTP application over the given repositories
func NewApp(bases ports.BasisRepository, runs ports.RunRepository) *App {
	app := &App{
		router:  chi.NewRouter(),
		bases:   bases,
		runs:    runs,
		streams: rng.NewStreamProvider(),
	}
	app.setupMiddleware()
	app.setupRoutes()
	return app
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)

	a.router.Post("/api/basis", a.handleBuildBasis)
	a.router.Get("/api/basis/{id}", a.handleGetBasis)
	a.router.Post("/api/simulate", a.handleSimulate)
	a.router.Post("/api/augment", a.handleAugment)
	a.router.Get("/api/runs", a.handleListRuns)
	a.router.Get("/api/refstats", a.handleRefStats)

	a.router.Get("/runs/{id}/report", a.handleRunReport)
}

// Router returns the HTTP handler
func (a *App) Router() http.Handler {
	return a.router
}

// Start runs the HTTP server
func (a *App) Start(config Config) error {
	addr := ":" + config.Port
	log.Printf("[Server] Listening on %s", addr)
	return http.ListenAndServe(addr, a.router)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Server] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
