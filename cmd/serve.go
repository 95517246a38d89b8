package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/internal/monitoring"
	"github.com/jobfoundry/apply-cli/internal/pipeline"
	"github.com/jobfoundry/apply-cli/internal/task"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for asynchronous job processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		tracker := task.NewTracker(
			task.WithRetention(time.Duration(cfg.Tasks.RetentionMins) * time.Minute),
		)
		pool := task.NewPool(tracker,
			func(ctx context.Context, req model.JobRequest, report task.ProgressFunc) (*model.JobResult, error) {
				return env.runAndArchive(ctx, task.TaskIDFromContext(ctx), req, pipeline.ReportFunc(report))
			},
			task.WithWorkers(cfg.Tasks.Workers),
			task.WithQueueSize(cfg.Tasks.QueueSize),
			task.WithSoftLimit(time.Duration(cfg.Tasks.SoftLimitMins)*time.Minute),
			task.WithHardLimit(time.Duration(cfg.Tasks.HardLimitMins)*time.Minute),
			task.WithSweepInterval(time.Duration(cfg.Tasks.SweepIntervalMins)*time.Minute),
		)
		pool.Start(ctx)
		defer pool.Shutdown()

		collector := monitoring.NewCollector(tracker, env.Store)
		checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		go checker.Run(ctx)

		api := &apiServer{
			tracker:        tracker,
			pool:           pool,
			collector:      collector,
			browserEnabled: env.Scraper != nil,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.WithoutCancel(ctx))
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer carries the handler dependencies.
type apiServer struct {
	tracker        *task.Tracker
	pool           *task.Pool
	collector      *monitoring.Collector
	browserEnabled bool
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Post("/jobs", s.handleSubmit)
	r.Post("/jobs/batch", s.handleBatchSubmit)
	r.Get("/jobs/{id}/status", s.handleStatus)
	r.Post("/jobs/batch/status", s.handleBatchStatus)
	r.Post("/jobs/{id}/cancel", s.handleCancel)

	return r
}

type submitRequest struct {
	URL          string `json:"url"`
	ForcePrimary bool   `json:"forcePrimary"`
}

// validateURL rejects inputs the pipeline cannot possibly process.
func validateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("url must be absolute http(s)")
	}
	return nil
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.pool.Submit(model.JobRequest{
		URL:          strings.TrimSpace(req.URL),
		ForcePrimary: req.ForcePrimary,
		SubmittedAt:  time.Now().UTC(),
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"taskId": id,
		"status": model.TaskPending,
	})
}

type batchSubmitRequest struct {
	URLs         []string `json:"urls"`
	ForcePrimary bool     `json:"forcePrimary"`
}

type batchItem struct {
	URL    string `json:"url"`
	TaskID string `json:"taskId,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *apiServer) handleBatchSubmit(w http.ResponseWriter, r *http.Request) {
	var req batchSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls is required")
		return
	}

	// Each url is enqueued independently; a malformed entry never aborts
	// the rest of the batch.
	items := make([]batchItem, 0, len(req.URLs))
	var queued, failed int
	for _, raw := range req.URLs {
		item := batchItem{URL: raw}
		if err := validateURL(raw); err != nil {
			item.Error = err.Error()
			failed++
			items = append(items, item)
			continue
		}
		id, err := s.pool.Submit(model.JobRequest{
			URL:          strings.TrimSpace(raw),
			ForcePrimary: req.ForcePrimary,
			SubmittedAt:  time.Now().UTC(),
		})
		if err != nil {
			item.Error = err.Error()
			failed++
		} else {
			item.TaskID = id
			queued++
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"items":     items,
		"queued":    queued,
		"failed":    failed,
		"submitted": queued + failed,
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := s.tracker.Get(id)
	if err != nil {
		// Unknown ids report PENDING: an expired or never-seen task is
		// indistinguishable from one not yet picked up.
		writeJSON(w, http.StatusOK, map[string]any{
			"taskId": id,
			"status": model.TaskPending,
		})
		return
	}

	resp := map[string]any{
		"taskId":   st.ID,
		"status":   st.Status,
		"stage":    st.Stage,
		"progress": st.Progress,
	}
	if st.Result != nil {
		resp["result"] = st.Result
	}
	if st.Error != "" {
		resp["error"] = st.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

type batchStatusRequest struct {
	TaskIDs []string `json:"taskIds"`
}

func (s *apiServer) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	var req batchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.TaskIDs) == 0 {
		writeError(w, http.StatusBadRequest, "taskIds is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"statuses": s.tracker.BatchStatus(req.TaskIDs),
	})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	prev, current, err := s.pool.Cancel(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}

	if current == model.TaskRevoked {
		writeJSON(w, http.StatusOK, map[string]any{
			"taskId":        id,
			"status":        "cancelled",
			"previousState": prev,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"taskId":        id,
		"status":        "cannotCancel",
		"previousState": prev,
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"capabilities": map[string]bool{
			"reader":  true,
			"browser": s.browserEnabled,
		},
	})
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context(), cfg.Monitoring.LookbackWindowHours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "metrics collection failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
