package server

import (
	"errors"
	"net/http"
	"strings"
)

type TaskCompleteRequest struct {
	StationID     string `json:"stationId"`
	PointsAwarded int    `json:"pointsAwarded"`
}

type TaskCompleteResponse struct {
	Team TeamView `json:"team"`
	Task TaskView `json:"task"`
}

func handleTaskComplete(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := requireSession(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req TaskCompleteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.StationID = strings.TrimSpace(req.StationID)
		if req.StationID == "" {
			writeError(w, http.StatusBadRequest, "stationId is required")
			return
		}

		resp, err := store.CompleteTask(r.Context(), sess, req.StationID, req.PointsAwarded)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "station not in this realization")
			return
		}
		if errors.Is(err, errLocationRequired) {
			writeError(w, http.StatusBadRequest, "location required before completing tasks")
			return
		}
		if errors.Is(err, ErrTaskDone) {
			writeError(w, http.StatusConflict, "task already completed")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
