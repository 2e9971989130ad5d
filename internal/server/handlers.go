package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shottracker/shottracker/internal/ballistics"
	"github.com/shottracker/shottracker/internal/storage"
	"github.com/shottracker/shottracker/pkg/core"
)

const maxBodyBytes = 1 << 20

// Shot sources recorded with each calculation.
const (
	SourceHTTP   = "http"
	SourceStream = "stream"
)

// errorBody is the error shape of every non-2xx response.
type errorBody struct {
	Detail string `json:"detail"`
}

// calculateRequest is a ShotRequest that may name a stored rifle instead of
// carrying the profile inline.
type calculateRequest struct {
	core.ShotRequest
	RifleID string `json:"rifle_id,omitempty"`
}

// writeJSON encodes v before the status line goes out, so an unencodable
// value becomes a 500 instead of an empty 2xx.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{Detail: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleListRifles(w http.ResponseWriter, r *http.Request) {
	rifles, err := s.backend.ListRifles(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list rifles", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rifles")
		return
	}
	writeJSON(w, http.StatusOK, rifles)
}

func (s *Server) handleCreateRifle(w http.ResponseWriter, r *http.Request) {
	var p core.RifleProfile
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid rifle: "+err.Error())
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	if p.MuzzleVelocityFPS <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "muzzle_velocity_fps must be positive")
		return
	}

	rifle, err := s.backend.AddRifle(r.Context(), p)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to add rifle", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store rifle")
		return
	}
	s.log.InfoContext(r.Context(), "Rifle created", "id", rifle.ID, "name", rifle.Name)
	writeJSON(w, http.StatusCreated, rifle)
}

func (s *Server) handleGetRifle(w http.ResponseWriter, r *http.Request) {
	rifle, err := s.backend.GetRifle(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrRifleNotFound) {
		writeError(w, http.StatusNotFound, "Rifle not found")
		return
	}
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to get rifle", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get rifle")
		return
	}
	writeJSON(w, http.StatusOK, rifle)
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request: "+err.Error())
		return
	}

	if req.RifleID != "" {
		rifle, err := s.backend.GetRifle(r.Context(), req.RifleID)
		if errors.Is(err, storage.ErrRifleNotFound) {
			writeError(w, http.StatusNotFound, "Rifle not found")
			return
		}
		if err != nil {
			s.log.ErrorContext(r.Context(), "Failed to get rifle", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get rifle")
			return
		}
		req.Rifle = rifle.RifleProfile
	}

	res, err := ballistics.Calculate(req.ShotRequest)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.recordShot(r.Context(), req.RifleID, req.ShotRequest, res, SourceHTTP)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReticle(w http.ResponseWriter, r *http.Request) {
	var res core.ShotResult
	if err := decodeBody(w, r, &res); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid result: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.solver.Projector().Project(res.Drop(), res.Drift()))
}

func (s *Server) handleRecentShots(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "limit must be an integer")
			return
		}
		limit = n
	}

	shots, err := s.backend.RecentShots(r.Context(), storage.NormalizeLimit(limit))
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list shots", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list shots")
		return
	}
	if shots == nil {
		shots = []core.ShotRecord{}
	}
	writeJSON(w, http.StatusOK, shots)
}

func (s *Server) recordShot(ctx context.Context, rifleID string, req core.ShotRequest, res core.ShotResult, source string) {
	layout := s.solver.Projector().Project(res.Drop(), res.Drift())
	s.record(ctx, core.ShotRecord{
		RifleID: rifleID,
		Request: req,
		Result:  res,
		Clamped: layout.Clamped,
		Source:  source,
	})
}
