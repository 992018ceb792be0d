package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/cadence/internal/engine"
	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/source"
	"github.com/seantiz/cadence/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 8 << 20 // 8 MB
)

// listRunsResponse wraps the paginated list response.
type listRunsResponse struct {
	Runs   []*model.Run `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	if runs == nil {
		runs = []*model.Run{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// readRunRequest decodes a body of newline-delimited message envelopes.
func (s *Server) readRunRequest(w http.ResponseWriter, r *http.Request) (engine.RunRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	pickles, err := source.Read(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid envelope stream")
		return engine.RunRequest{}, false
	}
	return engine.RunRequest{Pickles: pickles}, true
}

// handleSubmitRun starts a run over the pickles in the body and returns the
// pending run record. Progress is followed through the stream route.
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRunRequest(w, r)
	if !ok {
		return
	}

	run, err := s.engine.Submit(r.Context(), req)
	if errors.Is(err, engine.ErrNoExecutor) {
		s.writeError(w, http.StatusServiceUnavailable, "runs are not enabled on this server")
		return
	}
	if err != nil {
		s.logger.Error("submit run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit run")
		return
	}

	s.writeJSON(w, http.StatusAccepted, run)
}

// handlePlan responds with the pickles a run would execute, in order, as
// newline-delimited pickle envelopes.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRunRequest(w, r)
	if !ok {
		return
	}

	planned, err := s.engine.Plan(r.Context(), req)
	if err != nil {
		s.logger.Error("plan run", "error", err)
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Pickle-Count", strconv.Itoa(len(planned)))
	w.WriteHeader(http.StatusOK)
	if err := source.Write(w, planned); err != nil {
		s.logger.Error("write plan", "error", err)
	}
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
