package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/amazon-price-tracker/internal/app"
	"github.com/maltedev/amazon-price-tracker/internal/database"
	"github.com/maltedev/amazon-price-tracker/internal/storage"
	"github.com/maltedev/amazon-price-tracker/internal/tracker"
)

type Runner interface {
	Run(ctx context.Context, params app.Params) (*app.Result, error)
}

type ReportReader interface {
	Read(name string) ([]byte, error)
}

type HistoryReader interface {
	LatestPrices(ctx context.Context, title string) ([]database.Snapshot, error)
}

type Handlers struct {
	runner  Runner
	reports ReportReader
	history HistoryReader
	logger  *slog.Logger

	// running allows one run at a time; the browser session is not shared.
	running sync.Mutex
}

func NewHandlers(runner Runner, reports ReportReader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		runner:  runner,
		reports: reports,
		logger:  logger.With("component", "api"),
	}
}

// WithHistory enables the price history endpoint.
func (h *Handlers) WithHistory(history HistoryReader) *Handlers {
	h.history = history
	return h
}

// RunResponse is returned by a successful run.
type RunResponse struct {
	RunID  string      `json:"run_id"`
	Path   string      `json:"path"`
	Report interface{} `json:"report"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateRun runs a search synchronously and returns the written report.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var params app.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := params.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.running.TryLock() {
		h.respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer h.running.Unlock()

	result, err := h.runner.Run(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidParams):
			h.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, tracker.ErrNoProductLinks), errors.Is(err, app.ErrNoProducts):
			h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error("run failed", "title", params.Title, "error", err)
			h.respondError(w, http.StatusInternalServerError, "run failed")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, RunResponse{
		RunID:  result.RunID.String(),
		Path:   result.Path,
		Report: result.Report,
	})
}

// GetReport serves a previously written report as stored on disk.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")

	data, err := h.reports.Read(title)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidName):
			h.respondError(w, http.StatusBadRequest, "invalid report title")
		case errors.Is(err, storage.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "report not found")
		default:
			h.logger.Error("failed to read report", "title", title, "error", err)
			h.respondError(w, http.StatusInternalServerError, "failed to read report")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// GetHistory returns the latest recorded price per product for a title.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respondError(w, http.StatusServiceUnavailable, "price history is disabled")
		return
	}

	title := chi.URLParam(r, "title")
	if err := storage.ValidateName(title); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid report title")
		return
	}

	snapshots, err := h.history.LatestPrices(r.Context(), title)
	if err != nil {
		h.logger.Error("failed to read price history", "title", title, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read price history")
		return
	}

	if len(snapshots) == 0 {
		h.respondError(w, http.StatusNotFound, "no price history")
		return
	}

	h.respondJSON(w, http.StatusOK, snapshots)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
