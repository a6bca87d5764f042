package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/survivorquest/eventops/internal/survivorquest"
)

type StationRequest struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Description  string `json:"description"`
	Image        string `json:"image"`
	Points       int    `json:"points"`
	TimeLimitSec int    `json:"timeLimitSec"`
}

// StationDraft is one entry in an admin's edit of a realization's station
// list. ID may name an instance, the original template (for stale drafts), or
// be empty for a brand-new station.
type StationDraft struct {
	ID string `json:"id"`
	StationRequest
}

type StationView struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Type               string `json:"type"`
	Description        string `json:"description"`
	Image              string `json:"image"`
	Points             int    `json:"points"`
	TimeLimitSec       int    `json:"timeLimitSec"`
	SourceTemplateID   string `json:"sourceTemplateId,omitempty"`
	ScenarioInstanceID string `json:"scenarioInstanceId,omitempty"`
	RealizationID      string `json:"realizationId,omitempty"`
	CreatedAt          string `json:"createdAt"`
}

func validStationRequest(req *StationRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	switch survivorquest.StationType(req.Type) {
	case survivorquest.StationQuiz, survivorquest.StationTime, survivorquest.StationPoints:
	default:
		return "type must be quiz, time or points"
	}
	if req.TimeLimitSec < 0 || req.TimeLimitSec > survivorquest.MaxTimeLimit {
		return "timeLimitSec must be between 0 and 600"
	}
	if req.Points < 0 {
		return "points must not be negative"
	}
	return ""
}

func handleListStations(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stations, err := store.ListStations(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, stations)
	}
}

func handleCreateStation(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := validStationRequest(&req); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		station, err := store.CreateStation(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusCreated, station)
	}
}

func handleGetStation(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		station, err := store.GetStation(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "station not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, station)
	}
}

func handleUpdateStation(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := validStationRequest(&req); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		station, err := store.UpdateStation(r.Context(), chi.URLParam(r, "id"), req)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "station not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, station)
	}
}

func handleDeleteStation(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.DeleteStation(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "station not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
