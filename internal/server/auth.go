package server

import (
	"net/http"
	"strings"
)

// requireSession resolves the Bearer token (or ?sessionToken= for clients
// that cannot set headers) to a live assignment. The store slides the TTL as
// part of the lookup.
func requireSession(r *http.Request, store Store) (teamSession, error) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		token = r.URL.Query().Get("sessionToken")
	}
	if token == "" {
		return teamSession{}, errNoSession
	}
	return store.SessionFromToken(r.Context(), token)
}
