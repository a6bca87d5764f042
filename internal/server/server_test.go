package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/survivorquest/eventops/internal/database"
	"github.com/survivorquest/eventops/internal/migrations"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	store := NewSQLiteStore(db, 0)
	if err := SeedDemo(ctx, testLogger(), store); err != nil {
		t.Fatalf("seed demo data: %v", err)
	}
	return store
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRouter(t *testing.T) (*chi.Mux, *SQLiteStore) {
	t.Helper()
	store := setupStore(t)

	r := chi.NewRouter()
	addRoutes(r, testLogger(), store, "")
	return r, store
}

// joinDevice joins the seeded realization (join code BL2026) with the given
// device id and returns the decoded response.
func joinDevice(t *testing.T, r http.Handler, deviceID string) JoinResponse {
	t.Helper()

	body, _ := json.Marshal(JoinRequest{JoinCode: "BL2026", DeviceID: deviceID, MemberName: "Tester"})
	req := httptest.NewRequest(http.MethodPost, "/api/mobile/session/join", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("join %s: expected 200, got %d: %s", deviceID, w.Code, w.Body.String())
	}

	var resp JoinResponse
	json.NewDecoder(w.Body).Decode(&resp)
	return resp
}

// adminLogin logs in as the seeded demo admin and returns the session cookie.
func adminLogin(t *testing.T, r http.Handler) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(AdminLoginRequest{Email: "admin@survivorquest.example", Password: "changeme"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	for _, c := range w.Result().Cookies() {
		if c.Name == adminCookieName {
			return c
		}
	}
	t.Fatal("admin login: no session cookie set")
	return nil
}

// adminDo runs an authenticated admin request and returns the recorder.
func adminDo(t *testing.T, r http.Handler, cookie *http.Cookie, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// sessionState fetches /api/mobile/session/state with the given token.
func sessionState(t *testing.T, r http.Handler, token string) SessionStateResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/mobile/session/state", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("session state: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SessionStateResponse
	json.NewDecoder(w.Body).Decode(&resp)
	return resp
}
