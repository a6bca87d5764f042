package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/survivorquest/eventops/internal/survivorquest"
)

type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(db *sql.DB, sessionTTL time.Duration) *SQLiteStore {
	if sessionTTL <= 0 {
		sessionTTL = survivorquest.SessionTTL
	}
	return &SQLiteStore{db: db, ttl: sessionTTL, now: time.Now}
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// sqlTimeFormat matches strftime('%Y-%m-%dT%H:%M:%fZ', 'now'), so Go-minted
// and SQLite-minted timestamps compare lexicographically.
const sqlTimeFormat = "2006-01-02T15:04:05.000Z"

func sqlTime(t time.Time) string { return t.UTC().Format(sqlTimeFormat) }

func parseSQLTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func newToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// --- Station templates ---

const stationColumns = `id, name, type, description, image, points, time_limit_sec,
	COALESCE(source_template_id, ''), COALESCE(scenario_instance_id, ''),
	COALESCE(realization_id, ''), created_at`

func scanStation(row interface{ Scan(...any) error }) (StationView, error) {
	var v StationView
	err := row.Scan(&v.ID, &v.Name, &v.Type, &v.Description, &v.Image, &v.Points,
		&v.TimeLimitSec, &v.SourceTemplateID, &v.ScenarioInstanceID, &v.RealizationID,
		&v.CreatedAt)
	return v, err
}

func (s *SQLiteStore) ListStations(ctx context.Context) ([]StationView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stationColumns+`
		FROM stations
		WHERE scenario_instance_id IS NULL
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := []StationView{}
	for rows.Next() {
		v, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, v)
	}
	return stations, rows.Err()
}

func (s *SQLiteStore) CreateStation(ctx context.Context, req StationRequest) (StationView, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO stations (id, name, type, description, image, points, time_limit_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+stationColumns+`
	`, newID(), req.Name, req.Type, req.Description, req.Image, req.Points, req.TimeLimitSec)
	return scanStation(row)
}

func (s *SQLiteStore) GetStation(ctx context.Context, id string) (StationView, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+stationColumns+` FROM stations WHERE id = ?
	`, id)
	v, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

func (s *SQLiteStore) UpdateStation(ctx context.Context, id string, req StationRequest) (StationView, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE stations
		SET name = ?, type = ?, description = ?, image = ?, points = ?, time_limit_sec = ?
		WHERE id = ?
		RETURNING `+stationColumns+`
	`, req.Name, req.Type, req.Description, req.Image, req.Points, req.TimeLimitSec, id)
	v, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

func (s *SQLiteStore) DeleteStation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM stations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Scenario templates ---

func (s *SQLiteStore) ListScenarios(ctx context.Context) ([]ScenarioView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, COALESCE(source_template_id, ''), created_at
		FROM scenarios
		WHERE realization_id IS NULL
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scenarios := []ScenarioView{}
	for rows.Next() {
		var v ScenarioView
		if err := rows.Scan(&v.ID, &v.Name, &v.Description, &v.SourceTemplateID, &v.CreatedAt); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range scenarios {
		ids, err := s.scenarioStationIDs(ctx, s.db, scenarios[i].ID)
		if err != nil {
			return nil, err
		}
		scenarios[i].StationIDs = ids
	}
	return scenarios, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) scenarioStationIDs(ctx context.Context, q querier, scenarioID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT station_id FROM scenario_stations
		WHERE scenario_id = ?
		ORDER BY position
	`, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) setScenarioStations(ctx context.Context, q querier, scenarioID string, stationIDs []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM scenario_stations WHERE scenario_id = ?`, scenarioID); err != nil {
		return err
	}
	for i, stationID := range stationIDs {
		var exists int
		err := q.QueryRowContext(ctx, `SELECT 1 FROM stations WHERE id = ?`, stationID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO scenario_stations (scenario_id, station_id, position)
			VALUES (?, ?, ?)
		`, scenarioID, stationID, i); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreateScenario(ctx context.Context, req ScenarioRequest) (ScenarioView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ScenarioView{}, err
	}
	defer tx.Rollback()

	var v ScenarioView
	err = tx.QueryRowContext(ctx, `
		INSERT INTO scenarios (id, name, description)
		VALUES (?, ?, ?)
		RETURNING id, name, description, created_at
	`, newID(), req.Name, req.Description).Scan(&v.ID, &v.Name, &v.Description, &v.CreatedAt)
	if err != nil {
		return ScenarioView{}, err
	}

	if err := s.setScenarioStations(ctx, tx, v.ID, req.StationIDs); err != nil {
		return ScenarioView{}, err
	}
	if err := tx.Commit(); err != nil {
		return ScenarioView{}, err
	}

	v.StationIDs = append([]string{}, req.StationIDs...)
	return v, nil
}

func (s *SQLiteStore) GetScenario(ctx context.Context, id string) (ScenarioView, error) {
	var v ScenarioView
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, COALESCE(source_template_id, ''), created_at
		FROM scenarios WHERE id = ?
	`, id).Scan(&v.ID, &v.Name, &v.Description, &v.SourceTemplateID, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}

	v.StationIDs, err = s.scenarioStationIDs(ctx, s.db, id)
	return v, err
}

func (s *SQLiteStore) UpdateScenario(ctx context.Context, id string, req ScenarioRequest) (ScenarioView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ScenarioView{}, err
	}
	defer tx.Rollback()

	var v ScenarioView
	err = tx.QueryRowContext(ctx, `
		UPDATE scenarios SET name = ?, description = ?
		WHERE id = ?
		RETURNING id, name, description, COALESCE(source_template_id, ''), created_at
	`, req.Name, req.Description, id).Scan(&v.ID, &v.Name, &v.Description, &v.SourceTemplateID, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ScenarioView{}, ErrNotFound
	}
	if err != nil {
		return ScenarioView{}, err
	}

	if err := s.setScenarioStations(ctx, tx, id, req.StationIDs); err != nil {
		return ScenarioView{}, err
	}
	if err := tx.Commit(); err != nil {
		return ScenarioView{}, err
	}

	v.StationIDs = append([]string{}, req.StationIDs...)
	return v, nil
}

func (s *SQLiteStore) DeleteScenario(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Users ---

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]UserView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, role, created_at FROM users ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []UserView{}
	for rows.Next() {
		var u UserView
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, req UserRequest) (UserView, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE email = ?
	`, email).Scan(&count); err != nil {
		return UserView{}, err
	}
	if count > 0 {
		return UserView{}, ErrEmailTaken
	}

	var u UserView
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, role)
		VALUES (?, ?, ?, ?)
		RETURNING id, name, email, role, created_at
	`, newID(), req.Name, email, req.Role).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	return u, err
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (UserView, error) {
	var u UserView
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, created_at FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, id string, req UserRequest) (UserView, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE email = ? AND id != ?
	`, email, id).Scan(&count); err != nil {
		return UserView{}, err
	}
	if count > 0 {
		return UserView{}, ErrEmailTaken
	}

	var u UserView
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET name = ?, email = ?, role = ?
		WHERE id = ?
		RETURNING id, name, email, role, created_at
	`, req.Name, email, req.Role, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Admin auth ---

func (s *SQLiteStore) AdminByEmail(ctx context.Context, email string) (string, string, error) {
	var adminID, passwordHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash FROM admins WHERE email = ?
	`, email).Scan(&adminID, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return adminID, passwordHash, err
}

func (s *SQLiteStore) CreateAdminSession(ctx context.Context, adminID string) (string, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO admin_sessions (admin_id)
		VALUES (?)
		RETURNING id
	`, adminID).Scan(&sessionID)
	return sessionID, err
}

func (s *SQLiteStore) DeleteAdminSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE id = ?`, sessionID)
	return err
}

func (s *SQLiteStore) AdminFromSession(ctx context.Context, sessionID string) (adminSession, error) {
	var sess adminSession
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.email
		FROM admin_sessions s
		JOIN admins a ON a.id = s.admin_id
		WHERE s.id = ?
	`, sessionID).Scan(&sess.AdminID, &sess.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return adminSession{}, errNoAdminSession
	}
	return sess, err
}
