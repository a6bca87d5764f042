package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

type RealizationRequest struct {
	Company          string   `json:"company"`
	ContactName      string   `json:"contactName"`
	ContactEmail     string   `json:"contactEmail"`
	ContactPhone     string   `json:"contactPhone"`
	Instructors      []string `json:"instructors"`
	Type             string   `json:"type"`
	JoinCode         string   `json:"joinCode"`
	ScenarioID       string   `json:"scenarioId"` // template id
	TeamCount        int      `json:"teamCount"`
	PeopleCount      int      `json:"peopleCount"`
	PositionCount    int      `json:"positionCount"`
	LocationRequired bool     `json:"locationRequired"`
	ScheduledAt      string   `json:"scheduledAt"`
	Done             bool     `json:"done"`
}

type LogEntryView struct {
	Entry     string `json:"entry"`
	CreatedAt string `json:"createdAt"`
}

type RealizationView struct {
	ID               string         `json:"id"`
	Company          string         `json:"company"`
	ContactName      string         `json:"contactName"`
	ContactEmail     string         `json:"contactEmail"`
	ContactPhone     string         `json:"contactPhone"`
	Instructors      []string       `json:"instructors"`
	Type             string         `json:"type"`
	JoinCode         string         `json:"joinCode"`
	ScenarioID       string         `json:"scenarioId"` // realization-scoped instance
	TeamCount        int            `json:"teamCount"`
	PeopleCount      int            `json:"peopleCount"`
	PositionCount    int            `json:"positionCount"`
	RequiredDevices  int            `json:"requiredDevices"`
	LocationRequired bool           `json:"locationRequired"`
	ScheduledAt      string         `json:"scheduledAt"`
	Status           string         `json:"status"`
	CreatedAt        string         `json:"createdAt"`
	Log              []LogEntryView `json:"log,omitempty"`
}

func validRealizationRequest(req *RealizationRequest) string {
	req.Company = strings.TrimSpace(req.Company)
	req.JoinCode = strings.TrimSpace(req.JoinCode)
	if req.Company == "" {
		return "company is required"
	}
	if req.JoinCode == "" {
		return "joinCode is required"
	}
	if req.TeamCount < 1 {
		return "teamCount must be at least 1"
	}
	if _, err := time.Parse(time.RFC3339, req.ScheduledAt); err != nil {
		return "scheduledAt must be an RFC 3339 timestamp"
	}
	return ""
}

func handleListRealizations(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		realizations, err := store.ListRealizations(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, realizations)
	}
}

func handleCreateRealization(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RealizationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := validRealizationRequest(&req); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		realization, err := store.CreateRealization(r.Context(), req)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "scenario not found")
			return
		}
		if errors.Is(err, ErrJoinCodeTaken) {
			writeError(w, http.StatusConflict, "join code already in use")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusCreated, realization)
	}
}

func handleGetRealization(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		realization, err := store.GetRealization(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "realization not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, realization)
	}
}

func handleUpdateRealization(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RealizationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := validRealizationRequest(&req); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		realization, err := store.UpdateRealization(r.Context(), chi.URLParam(r, "id"), req)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "realization not found")
			return
		}
		if errors.Is(err, ErrJoinCodeTaken) {
			writeError(w, http.StatusConflict, "join code already in use")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, realization)
	}
}

func handleDeleteRealization(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.DeleteRealization(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "realization not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleListRealizationStations(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stations, err := store.ListRealizationStations(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "realization not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, stations)
	}
}

func handleUpdateRealizationStations(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var drafts []StationDraft
		if err := readJSON(r, &drafts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		for i := range drafts {
			if msg := validStationRequest(&drafts[i].StationRequest); msg != "" {
				writeError(w, http.StatusBadRequest, msg)
				return
			}
		}

		stations, err := store.UpdateRealizationStations(r.Context(), chi.URLParam(r, "id"), drafts)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "realization not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, stations)
	}
}
