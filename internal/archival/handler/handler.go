// Package handler exposes the scheduler's minimal ops surface: a manual
// trigger, job status, accumulated sweep stats, a health probe and the
// metrics endpoint. Record CRUD routing lives with the ingestion layer, not
// here.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verikeep/internal/archival/orchestrator"
	"verikeep/internal/archival/scheduler"
	dErrors "verikeep/pkg/domain-errors"
)

// Runner is the slice of the scheduler the handler needs.
type Runner interface {
	Trigger(ctx context.Context) (*orchestrator.RunSummary, error)
	Status() []scheduler.JobStatus
}

// StatsSource reports accumulated sweep counters.
type StatsSource interface {
	Stats(ctx context.Context) (*orchestrator.StatsSnapshot, error)
}

// HealthChecker reports whether a backing dependency is reachable. A nil
// check is treated as healthy.
type HealthChecker func(ctx context.Context) error

type Handler struct {
	logger *slog.Logger
	runner Runner
	stats  StatsSource
	checks map[string]HealthChecker
}

func New(runner Runner, stats StatsSource, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		runner: runner,
		stats:  stats,
		checks: make(map[string]HealthChecker),
	}
}

// AddHealthCheck registers a named dependency check for /healthz.
func (h *Handler) AddHealthCheck(name string, check HealthChecker) {
	h.checks[name] = check
}

// Register mounts the ops routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/archival/run", h.handleTrigger)
	r.Get("/archival/status", h.handleStatus)
	r.Get("/archival/stats", h.handleStats)
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.runner.Trigger(ctx)
	if err != nil {
		if errors.Is(err, orchestrator.ErrRunInProgress) {
			h.writeError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "manual archival run failed", "error", err.Error())
		h.writeError(w, dErrors.New(dErrors.CodeInternal, "archival run failed"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"started":  summary.Started,
		"finished": summary.Finished,
		"modules":  summary.PerModule,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"jobs": h.runner.Status()})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.stats.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load archival stats", "error", err.Error())
		h.writeError(w, dErrors.New(dErrors.CodeInternal, "failed to load stats"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"modules":           snap.Modules,
		"last_archival_run": snap.LastRun,
		"next_archival_run": snap.NextRun,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if check == nil {
			deps[name] = "ok"
			continue
		}
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err.Error())
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]any{"status": "ok", "dependencies": deps}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		status = http.StatusBadRequest
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	case dErrors.CodeConflict:
		status = http.StatusConflict
	case dErrors.CodeUnavailable:
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
