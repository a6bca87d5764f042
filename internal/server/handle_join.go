package server

import (
	"errors"
	"net/http"
	"strings"
)

type JoinRequest struct {
	JoinCode   string `json:"joinCode"`
	DeviceID   string `json:"deviceId"`
	MemberName string `json:"memberName"`
}

type JoinResponse struct {
	SessionToken     string   `json:"sessionToken"`
	RealizationID    string   `json:"realizationId"`
	Team             TeamView `json:"team"`
	LocationRequired bool     `json:"locationRequired"`
}

func handleJoin(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.JoinCode = strings.TrimSpace(req.JoinCode)
		req.DeviceID = strings.TrimSpace(req.DeviceID)
		req.MemberName = strings.TrimSpace(req.MemberName)
		if req.JoinCode == "" || req.DeviceID == "" {
			writeError(w, http.StatusBadRequest, "joinCode and deviceId are required")
			return
		}

		resp, err := store.Join(r.Context(), req.JoinCode, req.DeviceID, req.MemberName)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "no realization with this join code")
			return
		}
		if errors.Is(err, ErrNoFreeSlot) {
			writeError(w, http.StatusConflict, "no free team slots")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
