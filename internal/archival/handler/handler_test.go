package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"verikeep/internal/archival/orchestrator"
	"verikeep/internal/archival/scheduler"
	"verikeep/internal/retention/models"
	"verikeep/pkg/domain"
)

type stubRunner struct {
	summary *orchestrator.RunSummary
	err     error
	status  []scheduler.JobStatus
}

func (s *stubRunner) Trigger(context.Context) (*orchestrator.RunSummary, error) {
	return s.summary, s.err
}

func (s *stubRunner) Status() []scheduler.JobStatus { return s.status }

type stubStats struct {
	snap *orchestrator.StatsSnapshot
	err  error
}

func (s *stubStats) Stats(context.Context) (*orchestrator.StatsSnapshot, error) {
	return s.snap, s.err
}

type HandlerSuite struct {
	suite.Suite
	runner *stubRunner
	stats  *stubStats
	router chi.Router
	h      *Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	now := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	s.runner = &stubRunner{
		summary: &orchestrator.RunSummary{
			Started:  now,
			Finished: now.Add(time.Second),
			PerModule: map[domain.RetentionModule]models.ModuleStats{
				domain.ModulePANKYC: {RecordsProcessed: 3, WarningsSent: 2, RecordsDeleted: 1},
			},
		},
		status: []scheduler.JobStatus{
			{Name: scheduler.JobArchival, Running: true, Interval: "24h0m0s"},
		},
	}
	s.stats = &stubStats{
		snap: &orchestrator.StatsSnapshot{
			Modules: map[domain.RetentionModule]models.ModuleStats{
				domain.ModulePANKYC: {RecordsDeleted: 5},
			},
		},
	}

	s.h = New(s.runner, s.stats, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	s.h.Register(s.router)
}

func (s *HandlerSuite) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestTrigger() {
	s.Run("success returns the run summary", func() {
		rec := s.do(http.MethodPost, "/archival/run")
		s.Equal(http.StatusOK, rec.Code)

		var body map[string]json.RawMessage
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Contains(body, "modules")
	})

	s.Run("run in progress maps to conflict", func() {
		s.runner.err = orchestrator.ErrRunInProgress
		rec := s.do(http.MethodPost, "/archival/run")
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("other failures map to internal", func() {
		s.runner.err = errors.New("store down")
		rec := s.do(http.MethodPost, "/archival/run")
		s.Equal(http.StatusInternalServerError, rec.Code)
	})
}

func (s *HandlerSuite) TestStatus() {
	rec := s.do(http.MethodGet, "/archival/status")
	s.Equal(http.StatusOK, rec.Code)

	var body struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Require().Len(body.Jobs, 1)
	s.Equal(scheduler.JobArchival, body.Jobs[0].Name)
	s.True(body.Jobs[0].Running)
}

func (s *HandlerSuite) TestStats() {
	s.Run("returns accumulated counters", func() {
		rec := s.do(http.MethodGet, "/archival/stats")
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "panKyc")
	})

	s.Run("store failure maps to internal", func() {
		s.stats.err = errors.New("config store down")
		rec := s.do(http.MethodGet, "/archival/stats")
		s.Equal(http.StatusInternalServerError, rec.Code)
	})
}

func (s *HandlerSuite) TestHealth() {
	s.Run("no checks is healthy", func() {
		rec := s.do(http.MethodGet, "/healthz")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("failing dependency degrades", func() {
		s.h.AddHealthCheck("redis", func(context.Context) error {
			return errors.New("connection refused")
		})
		rec := s.do(http.MethodGet, "/healthz")
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.Contains(rec.Body.String(), "degraded")
	})
}

func (s *HandlerSuite) TestMetrics() {
	rec := s.do(http.MethodGet, "/metrics")
	s.Equal(http.StatusOK, rec.Code)
}
