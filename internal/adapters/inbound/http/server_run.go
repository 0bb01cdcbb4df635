// Package http is the JSON API of the copilot: chat, job runs and the
// read-only interop queries.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cleitonmarx/epm-copilot/internal/telemetry"
	"github.com/cleitonmarx/epm-copilot/internal/usecases"
	"github.com/rs/cors"
)

// CopilotServer is the REST API server of the copilot.
type CopilotServer struct {
	Port         int                          `config:"HTTP_PORT" default:"8080"`
	ClientAPIKey string                       `config:"COPILOT_CLIENT_API_KEY" default:""`
	Logger       *log.Logger                  `resolve:""`
	Orchestrator usecases.ToolUseOrchestrator `resolve:""`
	JobRunner    usecases.PlanningJobRunner   `resolve:""`
	Interop      usecases.InteropQueries      `resolve:""`

	registry *ConversationRegistry
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (api *CopilotServer) Run(ctx context.Context) error {
	s := &http.Server{
		Handler: api.routes(),
		Addr:    fmt.Sprintf(":%d", api.Port),
	}

	errCh := make(chan error, 1)
	go func() {
		api.Logger.Printf("CopilotServer: Listening on port %d", api.Port)
		errCh <- s.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.Shutdown(shutdownCtx)
		if err != nil {
			api.Logger.Printf("CopilotServer: error during shutdown: %v", err)
		} else {
			api.Logger.Println("CopilotServer: stopped")
		}
		return err
	case err := <-errCh:
		return err
	}
}

// routes builds the full handler chain of the server.
func (api *CopilotServer) routes() http.Handler {
	api.registry = NewConversationRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", api.Healthz)
	mux.HandleFunc("POST /api/chat", api.Chat)
	mux.HandleFunc("POST /api/jobs/run", api.RunJob)
	mux.HandleFunc("GET /api/jobs/{id}", api.JobStatus)
	mux.HandleFunc("GET /api/jobdefinitions", api.JobDefinitions)
	mux.HandleFunc("GET /api/files", api.Files)
	mux.HandleFunc("GET /api/backups", api.Backups)
	mux.HandleFunc("GET /api/maintenance", api.Maintenance)
	mux.HandleFunc("GET /api/status/{operation}/{jobId}", api.OperationStatus)

	var h http.Handler = api.requireClientKey(mux)
	h = telemetry.Middleware("epm-copilot-api")(h)

	// Apply CORS at the top-level so preflight requests hit it, too.
	return cors.AllowAll().Handler(h)
}

// IsReady checks if the CopilotServer is ready by performing a health check.
func (api *CopilotServer) IsReady(ctx context.Context) error {
	resp, err := http.Get(fmt.Sprintf("http://:%d/healthz", api.Port))
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// Healthz reports liveness.
func (api *CopilotServer) Healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireClientKey gates every request on the configured client key, when one is set.
func (api *CopilotServer) requireClientKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		if api.ClientAPIKey != "" && r.Header.Get("X-API-Key") != api.ClientAPIKey {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED_CLIENT", "Invalid client API key.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
