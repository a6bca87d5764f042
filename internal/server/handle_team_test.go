package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func mobilePost(t *testing.T, r http.Handler, token, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestClaimTeam(t *testing.T) {
	r, _ := testRouter(t)
	join := joinDevice(t, r, "device-1")

	w := mobilePost(t, r, join.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "River Rats", Color: "#e6194b", Badge: "compass"})
	if w.Code != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var team TeamView
	json.NewDecoder(w.Body).Decode(&team)
	if team.Name == nil || *team.Name != "River Rats" {
		t.Errorf("expected name 'River Rats', got %v", team.Name)
	}
	if team.Color == nil || *team.Color != "#e6194b" {
		t.Errorf("expected color #e6194b, got %v", team.Color)
	}
	if team.Badge == nil || *team.Badge != "compass" {
		t.Errorf("expected badge compass, got %v", team.Badge)
	}

	// Visible through session state as well.
	state := sessionState(t, r, join.SessionToken)
	if state.Team.Name == nil || *state.Team.Name != "River Rats" {
		t.Errorf("state: expected name 'River Rats', got %v", state.Team.Name)
	}
}

func TestClaimTeamNameConflict(t *testing.T) {
	r, _ := testRouter(t)
	first := joinDevice(t, r, "device-1")
	second := joinDevice(t, r, "device-2")

	w := mobilePost(t, r, first.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "River Rats", Color: "#e6194b"})
	if w.Code != http.StatusOK {
		t.Fatalf("first claim: expected 200, got %d", w.Code)
	}

	// Name uniqueness is case-insensitive.
	w = mobilePost(t, r, second.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "river rats", Color: "#3cb44b"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["message"] != "team name already taken" {
		t.Errorf("unexpected message %q", resp["message"])
	}
}

func TestClaimTeamNameConflictNonASCII(t *testing.T) {
	r, _ := testRouter(t)
	first := joinDevice(t, r, "device-1")
	second := joinDevice(t, r, "device-2")

	w := mobilePost(t, r, first.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "Lösa Vargar", Color: "#e6194b"})
	if w.Code != http.StatusOK {
		t.Fatalf("first claim: expected 200, got %d", w.Code)
	}

	// Case folding has to cover more than ASCII.
	w = mobilePost(t, r, second.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "LÖSA VARGAR", Color: "#3cb44b"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d: %s", w.Code, w.Body.String())
	}
}

func TestClaimTeamColorConflict(t *testing.T) {
	r, _ := testRouter(t)
	first := joinDevice(t, r, "device-1")
	second := joinDevice(t, r, "device-2")

	w := mobilePost(t, r, first.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "River Rats", Color: "#e6194b"})
	if w.Code != http.StatusOK {
		t.Fatalf("first claim: expected 200, got %d", w.Code)
	}

	w = mobilePost(t, r, second.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "Pine Martens", Color: "#e6194b"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate color, got %d: %s", w.Code, w.Body.String())
	}
}

func TestClaimTeamRejectsOffPaletteColor(t *testing.T) {
	r, _ := testRouter(t)
	join := joinDevice(t, r, "device-1")

	w := mobilePost(t, r, join.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "River Rats", Color: "#123456"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for off-palette color, got %d", w.Code)
	}
}

func TestClaimTeamReclaimKeepsBadge(t *testing.T) {
	r, _ := testRouter(t)
	join := joinDevice(t, r, "device-1")

	w := mobilePost(t, r, join.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "River Rats", Color: "#e6194b", Badge: "tent"})
	if w.Code != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d", w.Code)
	}

	// Re-claim without a badge keeps the existing one.
	w = mobilePost(t, r, join.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "Swamp Rats", Color: "#e6194b"})
	if w.Code != http.StatusOK {
		t.Fatalf("re-claim: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var team TeamView
	json.NewDecoder(w.Body).Decode(&team)
	if team.Badge == nil || *team.Badge != "tent" {
		t.Errorf("expected badge to survive re-claim, got %v", team.Badge)
	}
	if team.Name == nil || *team.Name != "Swamp Rats" {
		t.Errorf("expected renamed team, got %v", team.Name)
	}
}

func TestRandomizeTeam(t *testing.T) {
	r, _ := testRouter(t)
	join := joinDevice(t, r, "device-1")

	w := mobilePost(t, r, join.SessionToken, "/api/mobile/team/randomize", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("randomize: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var team TeamView
	json.NewDecoder(w.Body).Decode(&team)
	if team.Name == nil || *team.Name == "" {
		t.Fatal("expected a randomized name")
	}
	if team.Color == nil || !validColor(*team.Color) {
		t.Errorf("expected a palette color, got %v", team.Color)
	}
	if team.Badge == nil || *team.Badge == "" {
		t.Error("expected a randomized badge")
	}

	found := false
	for _, n := range teamNamePool {
		if n == *team.Name {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("name %q not from the pool", *team.Name)
	}
}

func TestRandomizeKeepsClaimedColor(t *testing.T) {
	r, _ := testRouter(t)
	join := joinDevice(t, r, "device-1")

	w := mobilePost(t, r, join.SessionToken, "/api/mobile/team/claim",
		ClaimRequest{Name: "River Rats", Color: "#008080"})
	if w.Code != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d", w.Code)
	}

	w = mobilePost(t, r, join.SessionToken, "/api/mobile/team/randomize", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("randomize: expected 200, got %d", w.Code)
	}

	var team TeamView
	json.NewDecoder(w.Body).Decode(&team)
	if team.Color == nil || *team.Color != "#008080" {
		t.Errorf("randomize must not replace a chosen color, got %v", team.Color)
	}
	if team.Name != nil && *team.Name == "River Rats" {
		t.Error("expected the name to change")
	}
}

func TestRandomizeDistinctNames(t *testing.T) {
	r, _ := testRouter(t)

	seen := map[string]bool{}
	for _, device := range []string{"device-1", "device-2", "device-3"} {
		join := joinDevice(t, r, device)
		w := mobilePost(t, r, join.SessionToken, "/api/mobile/team/randomize", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("randomize %s: expected 200, got %d", device, w.Code)
		}
		var team TeamView
		json.NewDecoder(w.Body).Decode(&team)
		if team.Name == nil {
			t.Fatalf("randomize %s: no name", device)
		}
		if seen[*team.Name] {
			t.Fatalf("name %q assigned twice", *team.Name)
		}
		seen[*team.Name] = true
	}
}

func TestUpdateLocation(t *testing.T) {
	r, _ := testRouter(t)
	join := joinDevice(t, r, "device-1")

	acc := 12.5
	w := mobilePost(t, r, join.SessionToken, "/api/mobile/team/location",
		LocationRequest{Lat: 52.52, Lng: 13.405, Accuracy: &acc})
	if w.Code != http.StatusOK {
		t.Fatalf("location: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var team TeamView
	json.NewDecoder(w.Body).Decode(&team)
	if team.LastLocation == nil {
		t.Fatal("expected a last location")
	}
	if team.LastLocation.Lat != 52.52 || team.LastLocation.Lng != 13.405 {
		t.Errorf("unexpected coordinates %+v", team.LastLocation)
	}
	if team.LastLocation.Accuracy == nil || *team.LastLocation.Accuracy != 12.5 {
		t.Errorf("unexpected accuracy %v", team.LastLocation.Accuracy)
	}
}

func TestUpdateLocationRejectsBadCoordinates(t *testing.T) {
	r, _ := testRouter(t)
	join := joinDevice(t, r, "device-1")

	w := mobilePost(t, r, join.SessionToken, "/api/mobile/team/location",
		LocationRequest{Lat: 95, Lng: 13.405})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range latitude, got %d", w.Code)
	}
}
