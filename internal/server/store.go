package server

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Conflict-class errors. Each maps to a distinct 409 message so the mobile
// client can tell the failure modes apart.
var (
	ErrNoFreeSlot    = errors.New("no free team slots")
	ErrNameTaken     = errors.New("team name already taken")
	ErrColorTaken    = errors.New("team color already taken")
	ErrTaskDone      = errors.New("task already completed")
	ErrPoolExhausted = errors.New("no unused team names left")
	ErrEmailTaken    = errors.New("email already in use")
	ErrJoinCodeTaken = errors.New("join code already in use")
)

var (
	errNoSession        = errors.New("no valid session")
	errLocationRequired = errors.New("location required before completing tasks")
	errInvalidColor     = errors.New("color is not in the palette")
)

// teamSession identifies the device assignment behind a bearer token.
type teamSession struct {
	AssignmentID  string
	TeamID        string
	RealizationID string
	DeviceID      string
}

type Store interface {
	// Mobile session lifecycle. SessionFromToken slides the TTL and touches
	// last-seen on every successful lookup; expired rows are evicted.
	SessionFromToken(ctx context.Context, token string) (teamSession, error)
	Join(ctx context.Context, joinCode, deviceID, memberName string) (JoinResponse, error)
	SessionState(ctx context.Context, sess teamSession) (SessionStateResponse, error)
	ClaimTeam(ctx context.Context, sess teamSession, name, color, badge string) (TeamView, error)
	RandomizeTeam(ctx context.Context, sess teamSession) (TeamView, error)
	UpdateLocation(ctx context.Context, sess teamSession, loc LocationRequest) (TeamView, error)
	CompleteTask(ctx context.Context, sess teamSession, stationID string, pointsAwarded int) (TaskCompleteResponse, error)

	// Admin live overview. id may be the sentinel "current".
	Overview(ctx context.Context, id string) (OverviewResponse, error)

	// Station templates.
	ListStations(ctx context.Context) ([]StationView, error)
	CreateStation(ctx context.Context, req StationRequest) (StationView, error)
	GetStation(ctx context.Context, id string) (StationView, error)
	UpdateStation(ctx context.Context, id string, req StationRequest) (StationView, error)
	DeleteStation(ctx context.Context, id string) error

	// Scenario templates.
	ListScenarios(ctx context.Context) ([]ScenarioView, error)
	CreateScenario(ctx context.Context, req ScenarioRequest) (ScenarioView, error)
	GetScenario(ctx context.Context, id string) (ScenarioView, error)
	UpdateScenario(ctx context.Context, id string, req ScenarioRequest) (ScenarioView, error)
	DeleteScenario(ctx context.Context, id string) error

	// Realizations. Create clones the scenario template; Update re-clones when
	// the scenario is reassigned. Station edits reconcile against the
	// realization's instances, never the templates.
	ListRealizations(ctx context.Context) ([]RealizationView, error)
	CreateRealization(ctx context.Context, req RealizationRequest) (RealizationView, error)
	GetRealization(ctx context.Context, id string) (RealizationView, error)
	UpdateRealization(ctx context.Context, id string, req RealizationRequest) (RealizationView, error)
	DeleteRealization(ctx context.Context, id string) error
	ListRealizationStations(ctx context.Context, id string) ([]StationView, error)
	UpdateRealizationStations(ctx context.Context, id string, drafts []StationDraft) ([]StationView, error)

	// Users.
	ListUsers(ctx context.Context) ([]UserView, error)
	CreateUser(ctx context.Context, req UserRequest) (UserView, error)
	GetUser(ctx context.Context, id string) (UserView, error)
	UpdateUser(ctx context.Context, id string, req UserRequest) (UserView, error)
	DeleteUser(ctx context.Context, id string) error

	// Admin auth.
	AdminByEmail(ctx context.Context, email string) (adminID, passwordHash string, err error)
	CreateAdminSession(ctx context.Context, adminID string) (string, error)
	DeleteAdminSession(ctx context.Context, sessionID string) error
	AdminFromSession(ctx context.Context, sessionID string) (adminSession, error)

	Ping(ctx context.Context) error
}
