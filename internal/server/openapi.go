package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Message string `json:"message"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "SurvivorQuest API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Event-operations backend for SurvivorQuest: admin panel CRUD plus the mobile team onboarding API.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/mobile/session/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/mobile/session/join")
	postJoin.SetSummary("Join a realization")
	postJoin.SetDescription("Bind this device to the lowest free team slot. Re-joining with the same device returns the existing session.")
	postJoin.AddReqStructure(JoinRequest{})
	postJoin.AddRespStructure(JoinResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postJoin)

	// GET /api/mobile/session/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/mobile/session/state")
	getState.SetSummary("Session snapshot")
	getState.SetDescription("Realization, own team and task list. Requires Bearer session token; the call slides the session TTL.")
	getState.AddRespStructure(SessionStateResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getState)

	// POST /api/mobile/team/claim
	postClaim, _ := r.NewOperationContext(http.MethodPost, "/api/mobile/team/claim")
	postClaim.SetSummary("Claim team identity")
	postClaim.SetDescription("Set the team's name, palette color and optional badge. Name and color must be unique in the realization.")
	postClaim.AddReqStructure(ClaimRequest{})
	postClaim.AddRespStructure(TeamView{}, openapi.WithHTTPStatus(http.StatusOK))
	postClaim.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postClaim.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postClaim.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postClaim)

	// POST /api/mobile/team/randomize
	postRandomize, _ := r.NewOperationContext(http.MethodPost, "/api/mobile/team/randomize")
	postRandomize.SetSummary("Randomize team identity")
	postRandomize.AddRespStructure(TeamView{}, openapi.WithHTTPStatus(http.StatusOK))
	postRandomize.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postRandomize.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postRandomize)

	// POST /api/mobile/team/location
	postLocation, _ := r.NewOperationContext(http.MethodPost, "/api/mobile/team/location")
	postLocation.SetSummary("Report team location")
	postLocation.AddReqStructure(LocationRequest{})
	postLocation.AddRespStructure(TeamView{}, openapi.WithHTTPStatus(http.StatusOK))
	postLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLocation)

	// POST /api/mobile/task/complete
	postComplete, _ := r.NewOperationContext(http.MethodPost, "/api/mobile/task/complete")
	postComplete.SetSummary("Complete a station task")
	postComplete.SetDescription("Record a one-time completion and recompute the team's points from the progress log.")
	postComplete.AddReqStructure(TaskCompleteRequest{})
	postComplete.AddRespStructure(TaskCompleteResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postComplete.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postComplete.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postComplete.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postComplete.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postComplete)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.SetDescription("Authenticate with email and password. Sets admin_session cookie.")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/admin/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/admin/logout")
	postLogout.SetSummary("Admin logout")
	postLogout.SetDescription("Clears admin session and cookie.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/admin/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/admin/me")
	getMe.SetSummary("Current admin")
	getMe.SetDescription("Returns the currently authenticated admin. Requires admin_session cookie.")
	getMe.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// GET /api/admin/realizations/{id}/overview
	getOverview, _ := r.NewOperationContext(http.MethodGet, "/api/admin/realizations/{id}/overview")
	getOverview.SetSummary("Live realization overview")
	getOverview.SetDescription("Teams with live devices and task status, the event log newest-first, and aggregate stats. Use id \"current\" for the active event.")
	getOverview.AddRespStructure(OverviewResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getOverview.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	getOverview.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getOverview)

	// GET /api/games
	listStations, _ := r.NewOperationContext(http.MethodGet, "/api/games")
	listStations.SetSummary("List station templates")
	listStations.AddRespStructure([]StationView{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listStations)

	// POST /api/games
	createStation, _ := r.NewOperationContext(http.MethodPost, "/api/games")
	createStation.SetSummary("Create station template")
	createStation.AddReqStructure(StationRequest{})
	createStation.AddRespStructure(StationView{}, openapi.WithHTTPStatus(http.StatusCreated))
	createStation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createStation)

	// GET /api/games/{id}
	getStation, _ := r.NewOperationContext(http.MethodGet, "/api/games/{id}")
	getStation.SetSummary("Get station template")
	getStation.AddRespStructure(StationView{}, openapi.WithHTTPStatus(http.StatusOK))
	getStation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getStation)

	// PUT /api/games/{id}
	updateStation, _ := r.NewOperationContext(http.MethodPut, "/api/games/{id}")
	updateStation.SetSummary("Update station template")
	updateStation.AddReqStructure(StationRequest{})
	updateStation.AddRespStructure(StationView{}, openapi.WithHTTPStatus(http.StatusOK))
	updateStation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	updateStation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(updateStation)

	// DELETE /api/games/{id}
	deleteStation, _ := r.NewOperationContext(http.MethodDelete, "/api/games/{id}")
	deleteStation.SetSummary("Delete station template")
	deleteStation.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteStation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteStation)

	// GET /api/scenario
	listScenarios, _ := r.NewOperationContext(http.MethodGet, "/api/scenario")
	listScenarios.SetSummary("List scenario templates")
	listScenarios.AddRespStructure([]ScenarioView{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listScenarios)

	// POST /api/scenario
	createScenario, _ := r.NewOperationContext(http.MethodPost, "/api/scenario")
	createScenario.SetSummary("Create scenario template")
	createScenario.AddReqStructure(ScenarioRequest{})
	createScenario.AddRespStructure(ScenarioView{}, openapi.WithHTTPStatus(http.StatusCreated))
	createScenario.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createScenario)

	// GET /api/scenario/{id}
	getScenario, _ := r.NewOperationContext(http.MethodGet, "/api/scenario/{id}")
	getScenario.SetSummary("Get scenario template")
	getScenario.AddRespStructure(ScenarioView{}, openapi.WithHTTPStatus(http.StatusOK))
	getScenario.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getScenario)

	// PUT /api/scenario/{id}
	updateScenario, _ := r.NewOperationContext(http.MethodPut, "/api/scenario/{id}")
	updateScenario.SetSummary("Update scenario template")
	updateScenario.AddReqStructure(ScenarioRequest{})
	updateScenario.AddRespStructure(ScenarioView{}, openapi.WithHTTPStatus(http.StatusOK))
	updateScenario.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	updateScenario.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(updateScenario)

	// DELETE /api/scenario/{id}
	deleteScenario, _ := r.NewOperationContext(http.MethodDelete, "/api/scenario/{id}")
	deleteScenario.SetSummary("Delete scenario template")
	deleteScenario.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteScenario.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteScenario)

	// GET /api/realizations
	listRealizations, _ := r.NewOperationContext(http.MethodGet, "/api/realizations")
	listRealizations.SetSummary("List realizations")
	listRealizations.AddRespStructure([]RealizationView{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listRealizations)

	// POST /api/realizations
	createRealization, _ := r.NewOperationContext(http.MethodPost, "/api/realizations")
	createRealization.SetSummary("Schedule a realization")
	createRealization.SetDescription("Clones the chosen scenario template into a private instance and pre-creates the team slots.")
	createRealization.AddReqStructure(RealizationRequest{})
	createRealization.AddRespStructure(RealizationView{}, openapi.WithHTTPStatus(http.StatusCreated))
	createRealization.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createRealization.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(createRealization)

	// GET /api/realizations/{id}
	getRealization, _ := r.NewOperationContext(http.MethodGet, "/api/realizations/{id}")
	getRealization.SetSummary("Get realization")
	getRealization.SetDescription("Returns the realization with its log entries.")
	getRealization.AddRespStructure(RealizationView{}, openapi.WithHTTPStatus(http.StatusOK))
	getRealization.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getRealization)

	// PUT /api/realizations/{id}
	updateRealization, _ := r.NewOperationContext(http.MethodPut, "/api/realizations/{id}")
	updateRealization.SetSummary("Update realization")
	updateRealization.SetDescription("Switching the scenario template re-clones the instance and discards the old one.")
	updateRealization.AddReqStructure(RealizationRequest{})
	updateRealization.AddRespStructure(RealizationView{}, openapi.WithHTTPStatus(http.StatusOK))
	updateRealization.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	updateRealization.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	updateRealization.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(updateRealization)

	// DELETE /api/realizations/{id}
	deleteRealization, _ := r.NewOperationContext(http.MethodDelete, "/api/realizations/{id}")
	deleteRealization.SetSummary("Delete realization")
	deleteRealization.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteRealization.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteRealization)

	// GET /api/realizations/{id}/stations
	getRealizationStations, _ := r.NewOperationContext(http.MethodGet, "/api/realizations/{id}/stations")
	getRealizationStations.SetSummary("List a realization's station instances")
	getRealizationStations.AddRespStructure([]StationView{}, openapi.WithHTTPStatus(http.StatusOK))
	getRealizationStations.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getRealizationStations)

	// PUT /api/realizations/{id}/stations
	putRealizationStations, _ := r.NewOperationContext(http.MethodPut, "/api/realizations/{id}/stations")
	putRealizationStations.SetSummary("Reconcile a realization's station instances")
	putRealizationStations.SetDescription("Replaces the instance station list with the submitted draft. Drafts matching an existing instance update it in place; the rest become new instances.")
	putRealizationStations.AddReqStructure([]StationDraft{})
	putRealizationStations.AddRespStructure([]StationView{}, openapi.WithHTTPStatus(http.StatusOK))
	putRealizationStations.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	putRealizationStations.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(putRealizationStations)

	// GET /api/users
	listUsers, _ := r.NewOperationContext(http.MethodGet, "/api/users")
	listUsers.SetSummary("List instructors")
	listUsers.AddRespStructure([]UserView{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listUsers)

	// POST /api/users
	createUser, _ := r.NewOperationContext(http.MethodPost, "/api/users")
	createUser.SetSummary("Create instructor")
	createUser.AddReqStructure(UserRequest{})
	createUser.AddRespStructure(UserView{}, openapi.WithHTTPStatus(http.StatusCreated))
	createUser.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createUser.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(createUser)

	// GET /api/users/{id}
	getUser, _ := r.NewOperationContext(http.MethodGet, "/api/users/{id}")
	getUser.SetSummary("Get instructor")
	getUser.AddRespStructure(UserView{}, openapi.WithHTTPStatus(http.StatusOK))
	getUser.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getUser)

	// PUT /api/users/{id}
	updateUser, _ := r.NewOperationContext(http.MethodPut, "/api/users/{id}")
	updateUser.SetSummary("Update instructor")
	updateUser.AddReqStructure(UserRequest{})
	updateUser.AddRespStructure(UserView{}, openapi.WithHTTPStatus(http.StatusOK))
	updateUser.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	updateUser.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	updateUser.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(updateUser)

	// DELETE /api/users/{id}
	deleteUser, _ := r.NewOperationContext(http.MethodDelete, "/api/users/{id}")
	deleteUser.SetSummary("Delete instructor")
	deleteUser.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteUser.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteUser)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(data)
	}
}
