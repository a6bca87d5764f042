package server

import (
	"net/http"
)

type TaskStats struct {
	Total int `json:"total"`
	Done  int `json:"done"`
}

type LocationView struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp string   `json:"timestamp"`
}

type TeamView struct {
	ID           string        `json:"id"`
	SlotNumber   int           `json:"slotNumber"`
	Name         *string       `json:"name"`
	Color        *string       `json:"color"`
	Badge        *string       `json:"badge"`
	Points       int           `json:"points"`
	TaskStats    TaskStats     `json:"taskStats"`
	Status       string        `json:"status"`
	LastLocation *LocationView `json:"lastLocation"`
}

type TaskView struct {
	StationID     string `json:"stationId"`
	Name          string `json:"name,omitempty"`
	Type          string `json:"type,omitempty"`
	Points        int    `json:"points,omitempty"`
	TimeLimitSec  int    `json:"timeLimitSec,omitempty"`
	Status        string `json:"status"`
	PointsAwarded int    `json:"pointsAwarded,omitempty"`
	CompletedAt   string `json:"completedAt,omitempty"`
}

type RealizationSummary struct {
	ID               string `json:"id"`
	Company          string `json:"company"`
	Type             string `json:"type"`
	Status           string `json:"status"`
	ScheduledAt      string `json:"scheduledAt"`
	LocationRequired bool   `json:"locationRequired"`
}

type SessionStateResponse struct {
	Realization RealizationSummary `json:"realization"`
	Team        TeamView           `json:"team"`
	Tasks       []TaskView         `json:"tasks"`
}

func handleSessionState(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := requireSession(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		resp, err := store.SessionState(r.Context(), sess)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
