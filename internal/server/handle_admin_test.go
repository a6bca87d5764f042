package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAdminAuthRequired(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session cookie, got %d", w.Code)
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	r, _ := testRouter(t)

	body, _ := json.Marshal(AdminLoginRequest{Email: "admin@survivorquest.example", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}
}

func TestAdminMeAndLogout(t *testing.T) {
	r, _ := testRouter(t)
	cookie := adminLogin(t, r)

	w := adminDo(t, r, cookie, http.MethodGet, "/api/admin/me", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}
	var me AdminMeResponse
	json.NewDecoder(w.Body).Decode(&me)
	if me.Email != "admin@survivorquest.example" {
		t.Errorf("unexpected email %q", me.Email)
	}

	w = adminDo(t, r, cookie, http.MethodPost, "/api/admin/logout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", w.Code)
	}

	// The old cookie no longer works.
	w = adminDo(t, r, cookie, http.MethodGet, "/api/admin/me", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
}

func TestStationTemplateCRUD(t *testing.T) {
	r, _ := testRouter(t)
	cookie := adminLogin(t, r)

	w := adminDo(t, r, cookie, http.MethodPost, "/api/games",
		StationRequest{Name: "Blindfold Maze", Type: "time", Points: 90, TimeLimitSec: 240})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created StationView
	json.NewDecoder(w.Body).Decode(&created)
	if created.ID == "" {
		t.Fatal("create: expected an id")
	}

	w = adminDo(t, r, cookie, http.MethodGet, "/api/games", nil)
	var stations []StationView
	json.NewDecoder(w.Body).Decode(&stations)
	if len(stations) != 4 {
		t.Fatalf("expected 4 templates (3 seeded + 1), got %d", len(stations))
	}
	for _, st := range stations {
		if st.RealizationID != "" {
			t.Errorf("template list leaked instance %s", st.ID)
		}
	}

	w = adminDo(t, r, cookie, http.MethodPut, "/api/games/"+created.ID,
		StationRequest{Name: "Blindfold Maze XL", Type: "time", Points: 110, TimeLimitSec: 300})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated StationView
	json.NewDecoder(w.Body).Decode(&updated)
	if updated.Name != "Blindfold Maze XL" || updated.Points != 110 {
		t.Errorf("unexpected update result %+v", updated)
	}

	w = adminDo(t, r, cookie, http.MethodDelete, "/api/games/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	w = adminDo(t, r, cookie, http.MethodGet, "/api/games/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestStationTemplateValidation(t *testing.T) {
	r, _ := testRouter(t)
	cookie := adminLogin(t, r)

	cases := []struct {
		name string
		req  StationRequest
	}{
		{"bad type", StationRequest{Name: "X", Type: "dance", Points: 10}},
		{"missing name", StationRequest{Type: "quiz", Points: 10}},
		{"time limit too high", StationRequest{Name: "X", Type: "time", TimeLimitSec: 601}},
		{"negative points", StationRequest{Name: "X", Type: "quiz", Points: -1}},
	}
	for _, tc := range cases {
		w := adminDo(t, r, cookie, http.MethodPost, "/api/games", tc.req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestScenarioTemplateCRUD(t *testing.T) {
	r, _ := testRouter(t)
	cookie := adminLogin(t, r)

	w := adminDo(t, r, cookie, http.MethodPost, "/api/scenario",
		ScenarioRequest{Name: "Lakeside Short", Description: "Two stations", StationIDs: []string{"g-2", "g-1"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created ScenarioView
	json.NewDecoder(w.Body).Decode(&created)
	if len(created.StationIDs) != 2 || created.StationIDs[0] != "g-2" || created.StationIDs[1] != "g-1" {
		t.Errorf("expected ordered station ids [g-2 g-1], got %v", created.StationIDs)
	}

	w = adminDo(t, r, cookie, http.MethodPut, "/api/scenario/"+created.ID,
		ScenarioRequest{Name: "Lakeside Short", StationIDs: []string{"g-3"}})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated ScenarioView
	json.NewDecoder(w.Body).Decode(&updated)
	if len(updated.StationIDs) != 1 || updated.StationIDs[0] != "g-3" {
		t.Errorf("expected station ids [g-3], got %v", updated.StationIDs)
	}

	w = adminDo(t, r, cookie, http.MethodDelete, "/api/scenario/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
}

// seededRealization returns the one realization created by SeedDemo.
func seededRealization(t *testing.T, r http.Handler, cookie *http.Cookie) RealizationView {
	t.Helper()

	w := adminDo(t, r, cookie, http.MethodGet, "/api/realizations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list realizations: expected 200, got %d", w.Code)
	}
	var list []RealizationView
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 1 {
		t.Fatalf("expected 1 seeded realization, got %d", len(list))
	}
	return list[0]
}

func TestRealizationCloning(t *testing.T) {
	r, _ := testRouter(t)
	cookie := adminLogin(t, r)
	realization := seededRealization(t, r, cookie)

	if realization.ScenarioID == "s-1" {
		t.Fatal("realization must reference a cloned scenario instance, not the template")
	}
	if realization.RequiredDevices != 8 {
		t.Errorf("expected 8 required devices for 6 teams, got %d", realization.RequiredDevices)
	}

	w := adminDo(t, r, cookie, http.MethodGet, "/api/realizations/"+realization.ID+"/stations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stations: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var instances []StationView
	json.NewDecoder(w.Body).Decode(&instances)
	if len(instances) != 3 {
		t.Fatalf("expected 3 cloned stations, got %d", len(instances))
	}

	templates := map[string]bool{}
	for _, st := range instances {
		switch st.ID {
		case "g-1", "g-2", "g-3":
			t.Errorf("instance reuses template id %s", st.ID)
		}
		if st.SourceTemplateID == "" {
			t.Errorf("instance %s lost its source template", st.ID)
		}
		if st.RealizationID != realization.ID {
			t.Errorf("instance %s bound to %q, want %q", st.ID, st.RealizationID, realization.ID)
		}
		templates[st.SourceTemplateID] = true
	}
	for _, id := range []string{"g-1", "g-2", "g-3"} {
		if !templates[id] {
			t.Errorf("no instance traces back to template %s", id)
		}
	}

	// Order follows the template scenario.
	if instances[0].Name != "Knot Quiz" || instances[2].Name != "Fire Relay" {
		t.Errorf("unexpected station order: %s ... %s", instances[0].Name, instances[2].Name)
	}
}

func TestRealizationJoinCodeConflict(t *testing.T) {
	r, _ := testRouter(t)
	cookie := adminLogin(t, r)

	// Join codes are case-insensitive, so bl2026 collides with BL2026.
	w := adminDo(t, r, cookie, http.MethodPost, "/api/realizations", RealizationRequest{
		Company:     "Other Corp",
		JoinCode:    "bl2026",
		ScenarioID:  "s-1",
		TeamCount:   4,
		ScheduledAt: time.Now().UTC().Format(time.RFC3339),
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate join code, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRealizationStationReconcile(t *testing.T) {
	r, _ := testRouter(t)
	cookie := adminLogin(t, r)
	realization := seededRealization(t, r, cookie)

	w := adminDo(t, r, cookie, http.MethodGet, "/api/realizations/"+realization.ID+"/stations", nil)
	var before []StationView
	json.NewDecoder(w.Body).Decode(&before)
	if len(before) != 3 {
		t.Fatalf("expected 3 stations before reconcile, got %d", len(before))
	}

	// Drafts: the first keeps its instance id, the second references the
	// original template (a stale admin draft), a third is brand new, and the
	// last instance is omitted entirely.
	drafts := []StationDraft{
		{ID: before[0].ID, StationRequest: StationRequest{Name: "Knot Quiz v2", Type: "quiz", Points: 130, TimeLimitSec: 300}},
		{ID: "g-2", StationRequest: StationRequest{Name: "River Crossing Pro", Type: "points", Points: 200}},
		{StationRequest: StationRequest{Name: "Night Orienteering", Type: "time", Points: 75, TimeLimitSec: 500}},
	}
	w = adminDo(t, r, cookie, http.MethodPut, "/api/realizations/"+realization.ID+"/stations", drafts)
	if w.Code != http.StatusOK {
		t.Fatalf("reconcile: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var after []StationView
	json.NewDecoder(w.Body).Decode(&after)
	if len(after) != 3 {
		t.Fatalf("expected 3 stations after reconcile, got %d", len(after))
	}

	// Matched by instance id: updated in place.
	if after[0].ID != before[0].ID || after[0].Name != "Knot Quiz v2" || after[0].Points != 130 {
		t.Errorf("in-place update failed: %+v", after[0])
	}

	// Matched by template id: the existing instance for g-2 was updated, not
	// replaced.
	if after[1].ID != before[1].ID {
		t.Errorf("template-id draft replaced instance %s with %s", before[1].ID, after[1].ID)
	}
	if after[1].Name != "River Crossing Pro" || after[1].SourceTemplateID != "g-2" {
		t.Errorf("template-id update failed: %+v", after[1])
	}

	// The new draft became a fresh instance without a source template.
	if after[2].Name != "Night Orienteering" || after[2].SourceTemplateID != "" {
		t.Errorf("new draft not created cleanly: %+v", after[2])
	}
	if after[2].RealizationID != realization.ID {
		t.Errorf("new instance bound to %q", after[2].RealizationID)
	}

	// The omitted station (Fire Relay's instance) is gone.
	for _, st := range after {
		if st.ID == before[2].ID {
			t.Errorf("omitted instance %s survived", st.ID)
		}
	}

	// Templates are untouched throughout.
	w = adminDo(t, r, cookie, http.MethodGet, "/api/games/g-2", nil)
	var tpl StationView
	json.NewDecoder(w.Body).Decode(&tpl)
	if tpl.Name != "River Crossing" || tpl.Points != 180 {
		t.Errorf("template g-2 was modified: %+v", tpl)
	}
}

func TestRealizationScenarioReassignment(t *testing.T) {
	r, _ := testRouter(t)
	cookie := adminLogin(t, r)
	realization := seededRealization(t, r, cookie)

	w := adminDo(t, r, cookie, http.MethodPost, "/api/scenario",
		ScenarioRequest{Name: "Solo Relay", StationIDs: []string{"g-3"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create scenario: expected 201, got %d", w.Code)
	}
	var scenario ScenarioView
	json.NewDecoder(w.Body).Decode(&scenario)

	w = adminDo(t, r, cookie, http.MethodPut, "/api/realizations/"+realization.ID, RealizationRequest{
		Company:     realization.Company,
		JoinCode:    realization.JoinCode,
		ScenarioID:  scenario.ID,
		TeamCount:   realization.TeamCount,
		ScheduledAt: realization.ScheduledAt,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated RealizationView
	json.NewDecoder(w.Body).Decode(&updated)
	if updated.ScenarioID == realization.ScenarioID {
		t.Error("expected a fresh scenario instance after reassignment")
	}
	if updated.ScenarioID == scenario.ID {
		t.Error("realization must clone the new template, not reference it")
	}

	w = adminDo(t, r, cookie, http.MethodGet, "/api/realizations/"+realization.ID+"/stations", nil)
	var stations []StationView
	json.NewDecoder(w.Body).Decode(&stations)
	if len(stations) != 1 {
		t.Fatalf("expected 1 station from the new scenario, got %d", len(stations))
	}
	if stations[0].SourceTemplateID != "g-3" || stations[0].Name != "Fire Relay" {
		t.Errorf("unexpected cloned station %+v", stations[0])
	}
}

func TestRealizationUpdateKeepsScenario(t *testing.T) {
	r, _ := testRouter(t)
	cookie := adminLogin(t, r)
	realization := seededRealization(t, r, cookie)

	// A PUT echoing the GET view back carries the instance id in scenarioId;
	// that reads as "keep the current scenario", not a reassignment.
	w := adminDo(t, r, cookie, http.MethodPut, "/api/realizations/"+realization.ID, RealizationRequest{
		Company:     realization.Company,
		JoinCode:    realization.JoinCode,
		ScenarioID:  realization.ScenarioID,
		TeamCount:   realization.TeamCount,
		ScheduledAt: realization.ScheduledAt,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated RealizationView
	json.NewDecoder(w.Body).Decode(&updated)
	if updated.ScenarioID != realization.ScenarioID {
		t.Errorf("round-trip update replaced the scenario instance: %q -> %q",
			realization.ScenarioID, updated.ScenarioID)
	}

	w = adminDo(t, r, cookie, http.MethodGet, "/api/realizations/"+realization.ID+"/stations", nil)
	var stations []StationView
	json.NewDecoder(w.Body).Decode(&stations)
	if len(stations) != 3 {
		t.Fatalf("expected the existing 3 stations to survive, got %d", len(stations))
	}
}

func TestRealizationTeamSlotsOnlyGrow(t *testing.T) {
	r, store := testRouter(t)
	cookie := adminLogin(t, r)
	realization := seededRealization(t, r, cookie)

	w := adminDo(t, r, cookie, http.MethodPut, "/api/realizations/"+realization.ID, RealizationRequest{
		Company:     realization.Company,
		JoinCode:    realization.JoinCode,
		TeamCount:   8,
		ScheduledAt: realization.ScheduledAt,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("grow: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM teams WHERE realization_id = ?`, realization.ID).Scan(&count); err != nil {
		t.Fatalf("count teams: %v", err)
	}
	if count != 8 {
		t.Fatalf("expected 8 team slots, got %d", count)
	}

	// Shrinking the count never deletes slots.
	w = adminDo(t, r, cookie, http.MethodPut, "/api/realizations/"+realization.ID, RealizationRequest{
		Company:     realization.Company,
		JoinCode:    realization.JoinCode,
		TeamCount:   4,
		ScheduledAt: realization.ScheduledAt,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("shrink: expected 200, got %d", w.Code)
	}
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM teams WHERE realization_id = ?`, realization.ID).Scan(&count); err != nil {
		t.Fatalf("count teams: %v", err)
	}
	if count != 8 {
		t.Fatalf("expected slots to survive a shrink, got %d", count)
	}
}

func TestUserCRUD(t *testing.T) {
	r, _ := testRouter(t)
	cookie := adminLogin(t, r)

	w := adminDo(t, r, cookie, http.MethodPost, "/api/users",
		UserRequest{Name: "Jonas", Email: "jonas@survivorquest.example", Role: "instructor"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created UserView
	json.NewDecoder(w.Body).Decode(&created)

	// Emails are unique.
	w = adminDo(t, r, cookie, http.MethodPost, "/api/users",
		UserRequest{Name: "Other", Email: "jonas@survivorquest.example"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", w.Code)
	}

	w = adminDo(t, r, cookie, http.MethodPut, "/api/users/"+created.ID,
		UserRequest{Name: "Jonas K", Email: "jonas@survivorquest.example", Role: "lead"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = adminDo(t, r, cookie, http.MethodDelete, "/api/users/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	w = adminDo(t, r, cookie, http.MethodGet, "/api/users/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}
