package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/facility-atlas/internal/model"
	"github.com/sells-group/facility-atlas/internal/pipeline"
	"github.com/sells-group/facility-atlas/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the triangulation API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, true, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		limiter := rate.NewLimiter(rate.Limit(cfg.Server.RateRPS), cfg.Server.RateBurst)
		router := buildRouter(env, limiter)

		return startServer(ctx, router, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over the configured one.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// triangulateRequest is the POST /api/triangulate body.
type triangulateRequest struct {
	Source   string              `json:"source,omitempty"`
	Rows     []model.FacilityRow `json:"rows"`
	Excerpts []model.Excerpt     `json:"excerpts,omitempty"`
}

// triangulateResponse wraps the report with the id of the persisted run.
type triangulateResponse struct {
	RunID  string        `json:"run_id,omitempty"`
	Report *model.Report `json:"report"`
}

// buildRouter assembles the HTTP API. The store may be nil, in which case
// the runs endpoints answer 503 and triangulation results are not persisted.
func buildRouter(env *engineEnv, limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", handleListRuns(env))
		r.Get("/runs/{id}", handleGetRun(env))
		r.Post("/triangulate", handleTriangulate(env, limiter))
	})

	return r
}

func handleListRuns(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if env.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "store not configured")
			return
		}

		q := req.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		runs, err := env.Store.ListRuns(req.Context(), store.RunFilter{
			Status: model.RunStatus(q.Get("status")),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}

		writeJSON(w, http.StatusOK, runs)
	}
}

func handleGetRun(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if env.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "store not configured")
			return
		}

		id := chi.URLParam(req, "id")
		run, err := env.Store.GetRun(req.Context(), id)
		if err != nil {
			if eris.Is(err, store.ErrRunNotFound) {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			zap.L().Error("get run failed", zap.String("run_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get run failed")
			return
		}

		writeJSON(w, http.StatusOK, run)
	}
}

func handleTriangulate(env *engineEnv, limiter *rate.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if limiter != nil && !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		var body triangulateRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(body.Rows) == 0 {
			writeError(w, http.StatusBadRequest, "rows are required")
			return
		}

		source := body.Source
		if source == "" {
			source = "api"
		}

		in := pipeline.Input{Source: source, Rows: body.Rows, Excerpts: body.Excerpts}

		report, runID, err := runTriangulation(req.Context(), env, in, env.Store != nil)
		if err != nil {
			zap.L().Error("api triangulation failed",
				zap.String("source", source),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "triangulation failed")
			return
		}

		writeJSON(w, http.StatusOK, triangulateResponse{RunID: runID, Report: report})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// startServer runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}

	return nil
}
