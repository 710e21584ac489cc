package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/couchcryptid/fire-timeline-service/internal/domain"
	"github.com/couchcryptid/fire-timeline-service/internal/fetch"
	"github.com/couchcryptid/fire-timeline-service/internal/playback"
)

const maxBodyBytes = 1 << 16

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

// Timeline is the playback session as seen by the API.
type Timeline interface {
	View() domain.View
	DayCounts() []domain.DayCount
	Frame() playback.FrameView
	Navigate(n domain.Navigation) (bool, error)
	SetMode(m domain.Mode)
	SetMinConfidence(c domain.Confidence)
	Reload(ctx context.Context) (domain.Snapshot, error)
	ForceFetch(ctx context.Context) (int, error)
	DefaultHistoryRange() (start, end string)
	LoadHistory(ctx context.Context, start, end string) (domain.Snapshot, error)
	WindFor(dayKey string) (domain.WindSample, error)
	RefreshWind(ctx context.Context) (domain.WindSample, error)
	Status() playback.StatusReport
	BackendHealth(ctx context.Context) (domain.HealthReport, error)
}

type navigateRequest struct {
	Action domain.NavAction `json:"action"`
	Index  int              `json:"index"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type minConfidenceRequest struct {
	MinConf string `json:"min_conf"`
}

type historyRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type navigateResponse struct {
	Moved bool               `json:"moved"`
	Frame playback.FrameView `json:"frame"`
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("GET /api/days", s.handleDays)
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	mux.HandleFunc("PUT /api/mode", s.handleMode)
	mux.HandleFunc("PUT /api/min-confidence", s.handleMinConfidence)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("POST /api/fetch-now", s.handleFetchNow)
	mux.HandleFunc("POST /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/wind/{day}", s.handleWind)
	mux.HandleFunc("POST /api/wind/refresh", s.handleWindRefresh)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/backend-health", s.handleBackendHealth)
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.timeline.View())
}

func (s *Server) handleDays(w http.ResponseWriter, _ *http.Request) {
	days := s.timeline.DayCounts()
	if days == nil {
		days = []domain.DayCount{}
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.timeline.Frame())
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	moved, err := s.timeline.Navigate(domain.Navigation{Action: req.Action, Index: req.Index})
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, navigateResponse{Moved: moved, Frame: s.timeline.Frame()})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	s.timeline.SetMode(mode)
	writeJSON(w, http.StatusOK, s.timeline.Frame())
}

// handleMinConfidence changes the load filter and reloads the live timeline.
// An empty label clears the filter.
func (s *Server) handleMinConfidence(w http.ResponseWriter, r *http.Request) {
	var req minConfidenceRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var conf domain.Confidence
	if req.MinConf != "" {
		c, ok := domain.ParseConfidence(req.MinConf)
		if !ok {
			s.writeError(w, fmt.Errorf("%w: unknown confidence %q", errBadRequest, req.MinConf))
			return
		}
		conf = c
	}
	s.timeline.SetMinConfidence(conf)
	s.reload(w, r)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.reload(w, r)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.timeline.Reload(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFetchNow(w http.ResponseWriter, r *http.Request) {
	added, err := s.timeline.ForceFetch(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.StartDate == "" && req.EndDate == "" {
		req.StartDate, req.EndDate = s.timeline.DefaultHistoryRange()
	}
	snap, err := s.timeline.LoadHistory(r.Context(), req.StartDate, req.EndDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleWind(w http.ResponseWriter, r *http.Request) {
	sample, err := s.timeline.WindFor(r.PathValue("day"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.PresentWind(sample))
}

func (s *Server) handleWindRefresh(w http.ResponseWriter, r *http.Request) {
	sample, err := s.timeline.RefreshWind(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.PresentWind(sample))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.timeline.Status())
}

func (s *Server) handleBackendHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.timeline.BackendHealth(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// writeError maps err to a status code and writes {"error": ...}.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("api request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, playback.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidDayKey):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrBackendNotReady):
		return http.StatusServiceUnavailable
	case fetch.IsInteractive(err), fetch.IsTransient(err):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}
	return nil
}
