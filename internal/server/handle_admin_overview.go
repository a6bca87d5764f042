package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type DeviceView struct {
	DeviceID   string `json:"deviceId"`
	MemberName string `json:"memberName,omitempty"`
	LastSeenAt string `json:"lastSeenAt"`
	ExpiresAt  string `json:"expiresAt"`
}

type OverviewTeam struct {
	TeamView
	Devices []DeviceView `json:"devices"`
	Tasks   []TaskView   `json:"tasks"`
}

type EventView struct {
	ID        int64           `json:"id"`
	TeamID    string          `json:"teamId,omitempty"`
	Type      string          `json:"type"`
	ActorType string          `json:"actorType"`
	ActorID   string          `json:"actorId"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"createdAt"`
}

type OverviewStats struct {
	ActiveTeams    int `json:"activeTeams"`
	TasksCompleted int `json:"tasksCompleted"`
	TotalPoints    int `json:"totalPoints"`
	Events         int `json:"events"`
}

type OverviewResponse struct {
	Realization RealizationView `json:"realization"`
	Teams       []OverviewTeam  `json:"teams"`
	Events      []EventView     `json:"events"`
	Stats       OverviewStats   `json:"stats"`
}

func handleAdminOverview(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		resp, err := store.Overview(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "realization not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
