/*
 * Email Extractor - Job API Server
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
)

// Server exposes the job store over HTTP and advances jobs on a schedule.
type Server struct {
	store   *JobStore
	logger  *log.Logger
	cron    *cron.Cron
	baseCtx context.Context
	client  *http.Client
}

// NewServer builds a server. baseCtx bounds background job processing.
func NewServer(baseCtx context.Context, store *JobStore, logger *log.Logger) *Server {
	return &Server{
		store:   store,
		logger:  logger,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		baseCtx: baseCtx,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Router returns the HTTP handler for the job API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Post("/", s.handleCreateJob)
		r.Post("/process-batch", s.handleProcessBatch)
		r.Get("/{id}", s.handleGetJob)
		r.Delete("/{id}", s.handleDeleteJob)
		r.Get("/{id}/results", s.handleResults)
		r.Post("/{id}/process", s.handleProcessJob)
	})
	return r
}

type createJobRequest struct {
	Name     string   `json:"name"`
	URLs     []string `json:"urls"`
	SheetURL string   `json:"sheet_url"`
	Column   string   `json:"column"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	sites := req.URLs
	if len(sites) == 0 && req.SheetURL != "" {
		loaded, err := LoadSites(r.Context(), req.SheetURL, req.Column, s.client)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sites = loaded
	}

	job, err := s.store.CreateJob(r.Context(), req.Name, sites)
	if errors.Is(err, ErrNoSites) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteJob(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rows, err := s.store.Results(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="emails-%s.csv"`, id))
		if err := WriteResultsCSV(w, rows); err != nil {
			s.logger.Error().Str("job", id).Err(err).Msg("failed to stream csv results")
		}
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.ProcessBatch(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if summary.Processed == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"message": "No jobs to process", "processed": 0, "results": summary.Results})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleProcessJob starts running a pending job to completion in the background.
func (s *Server) handleProcessJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if job.Status != JobPending {
		writeStoreError(w, ErrJobNotPending)
		return
	}

	go func() {
		if _, err := s.store.ProcessJob(s.baseCtx, id); err != nil {
			s.logger.Warn().Str("job", id).Err(err).Msg("job processing stopped")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Job processing started", "id": id})
}

// StartScheduler runs ProcessBatch on the given cron schedule ("@every 30s").
// An empty schedule disables it.
func (s *Server) StartScheduler(schedule string) error {
	if schedule == "" {
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		summary, err := s.store.ProcessBatch(s.baseCtx)
		if err != nil {
			s.logger.Error().Err(err).Msg("scheduled batch failed")
			return
		}
		if summary.Processed > 0 {
			s.logger.Info().Int("jobs", summary.Processed).Msg("scheduled batch processed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid batch schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Msg("batch scheduler started")
	return nil
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("job api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	stopped := s.cron.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	select {
	case <-stopped.Done():
	case <-shutdownCtx.Done():
	}
	s.logger.Info().Msg("job api stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrJobNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrJobNotPending):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
