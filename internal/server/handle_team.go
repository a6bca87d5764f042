package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/survivorquest/eventops/internal/survivorquest"
)

type ClaimRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Badge string `json:"badge"`
}

type LocationRequest struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Accuracy  *float64 `json:"accuracy"`
	Timestamp string   `json:"timestamp"`
}

func handleTeamClaim(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := requireSession(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req ClaimRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		req.Badge = strings.TrimSpace(req.Badge)
		if req.Name == "" || req.Color == "" {
			writeError(w, http.StatusBadRequest, "name and color are required")
			return
		}
		if !validColor(req.Color) {
			writeError(w, http.StatusBadRequest, errInvalidColor.Error())
			return
		}

		team, err := store.ClaimTeam(r.Context(), sess, req.Name, req.Color, req.Badge)
		if errors.Is(err, ErrNameTaken) {
			writeError(w, http.StatusConflict, "team name already taken")
			return
		}
		if errors.Is(err, ErrColorTaken) {
			writeError(w, http.StatusConflict, "team color already taken")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, team)
	}
}

func handleTeamRandomize(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := requireSession(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		team, err := store.RandomizeTeam(r.Context(), sess)
		if errors.Is(err, ErrPoolExhausted) {
			writeError(w, http.StatusConflict, "no unused team names left")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, team)
	}
}

func handleTeamLocation(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := requireSession(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req LocationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !survivorquest.ValidCoordinates(req.Lat, req.Lng) {
			writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates")
			return
		}

		team, err := store.UpdateLocation(r.Context(), sess, req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, team)
	}
}
