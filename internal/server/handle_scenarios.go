package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type ScenarioRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	StationIDs  []string `json:"stationIds"`
}

type ScenarioView struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	StationIDs       []string `json:"stationIds"`
	SourceTemplateID string   `json:"sourceTemplateId,omitempty"`
	CreatedAt        string   `json:"createdAt"`
}

func handleListScenarios(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scenarios, err := store.ListScenarios(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, scenarios)
	}
}

func handleCreateScenario(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScenarioRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		scenario, err := store.CreateScenario(r.Context(), req)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown station id")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusCreated, scenario)
	}
}

func handleGetScenario(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scenario, err := store.GetScenario(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "scenario not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, scenario)
	}
}

func handleUpdateScenario(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScenarioRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		scenario, err := store.UpdateScenario(r.Context(), chi.URLParam(r, "id"), req)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "scenario not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, scenario)
	}
}

func handleDeleteScenario(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.DeleteScenario(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "scenario not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
