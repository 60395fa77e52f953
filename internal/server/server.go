// Package server exposes task submission and job status polling over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	netUrl "net/url"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/internal/cache"
	"github.com/CaitMS/Web-Exploration-Engine/internal/metrics"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const storeReadTimeout = 5 * time.Second

// TaskPublisher queues a task for the dispatch workers.
type TaskPublisher interface {
	Publish(ctx context.Context, task model.Task) error
}

type Server struct {
	router    chi.Router
	store     cache.JobStore
	publisher TaskPublisher
	log       *slog.Logger
}

type messageResponse struct {
	Message string `json:"message"`
}

type notFoundResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type submitResponse struct {
	Message    string          `json:"message"`
	Status     model.JobStatus `json:"status"`
	PollingURL string          `json:"pollingUrl"`
}

// NewServer builds the router. publisher may be nil, in which case submissions are rejected.
func NewServer(store cache.JobStore, publisher TaskPublisher, log *slog.Logger) *Server {
	s := &Server{store: store, publisher: publisher, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/scraper", func(r chi.Router) {
		r.Get("/", s.submitTask)
		r.Get("/status", s.getStatus)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus returns the stored job record for (url, type) as is.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	taskType, url, ok := s.parseTask(w, r, "")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeReadTimeout)
	defer cancel()
	record, err := s.store.Get(ctx, model.JobKey(url, taskType))
	if err != nil {
		s.log.Error("failed to read job record.", slog.String("err", err.Error()))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Failed to read job status"})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusOK, notFoundResponse{Message: "Job not found", Data: nil})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	taskType, url, ok := s.parseTask(w, r, model.FullScrape)
	if !ok {
		return
	}
	if u, err := netUrl.ParseRequestURI(url); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid URL"})
		return
	}
	if s.publisher == nil {
		writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: "Task submission is disabled"})
		return
	}

	task := model.Task{URL: url, Type: taskType}
	if err := s.publisher.Publish(r.Context(), task); err != nil {
		s.log.Error("failed to publish task.", slog.String("key", task.Key()), slog.String("err", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: "Failed to queue task"})
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{
		Message:    "Scraping task submitted",
		Status:     model.StatusProcessing,
		PollingURL: task.PollingPath(),
	})
}

// parseTask reads the url and type query parameters and answers 400 when they are invalid.
func (s *Server) parseTask(w http.ResponseWriter, r *http.Request, defaultType model.TaskType) (model.TaskType, string, bool) {
	q := r.URL.Query()
	url := q.Get("url")
	if url == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "URL is required"})
		return "", "", false
	}
	taskType := model.TaskType(q.Get("type"))
	if taskType == "" {
		taskType = defaultType
	}
	if !taskType.Valid() {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid type"})
		return "", "", false
	}
	return taskType, url, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := model.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
