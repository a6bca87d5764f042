package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/survivorquest/eventops/internal/survivorquest"
)

const realizationColumns = `id, company, contact_name, contact_email, contact_phone,
	instructors, type, join_code, COALESCE(scenario_id, ''), team_count, people_count,
	position_count, location_required, scheduled_at, done, created_at`

func (s *SQLiteStore) scanRealization(row interface{ Scan(...any) error }) (RealizationView, error) {
	var v RealizationView
	var instructors string
	var locationRequired, done int
	err := row.Scan(&v.ID, &v.Company, &v.ContactName, &v.ContactEmail, &v.ContactPhone,
		&instructors, &v.Type, &v.JoinCode, &v.ScenarioID, &v.TeamCount, &v.PeopleCount,
		&v.PositionCount, &locationRequired, &v.ScheduledAt, &done, &v.CreatedAt)
	if err != nil {
		return v, err
	}

	json.Unmarshal([]byte(instructors), &v.Instructors)
	if v.Instructors == nil {
		v.Instructors = []string{}
	}
	v.LocationRequired = locationRequired != 0
	v.RequiredDevices = survivorquest.RequiredDevices(v.TeamCount)
	v.Status = string(survivorquest.DeriveStatus(parseSQLTime(v.ScheduledAt), done != 0, s.now()))
	return v, nil
}

func (s *SQLiteStore) ListRealizations(ctx context.Context) ([]RealizationView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+realizationColumns+` FROM realizations ORDER BY scheduled_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	realizations := []RealizationView{}
	for rows.Next() {
		v, err := s.scanRealization(rows)
		if err != nil {
			return nil, err
		}
		realizations = append(realizations, v)
	}
	return realizations, rows.Err()
}

func (s *SQLiteStore) CreateRealization(ctx context.Context, req RealizationRequest) (RealizationView, error) {
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return RealizationView{}, fmt.Errorf("parsing scheduledAt: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RealizationView{}, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM realizations WHERE join_code = ? COLLATE NOCASE
	`, req.JoinCode).Scan(&count); err != nil {
		return RealizationView{}, err
	}
	if count > 0 {
		return RealizationView{}, ErrJoinCodeTaken
	}

	id := newID()
	instanceScenarioID, err := s.cloneScenario(ctx, tx, req.ScenarioID, id)
	if err != nil {
		return RealizationView{}, err
	}

	instructors, _ := json.Marshal(req.Instructors)
	row := tx.QueryRowContext(ctx, `
		INSERT INTO realizations (id, company, contact_name, contact_email, contact_phone,
			instructors, type, join_code, scenario_id, team_count, people_count,
			position_count, location_required, scheduled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+realizationColumns+`
	`, id, req.Company, req.ContactName, req.ContactEmail, req.ContactPhone,
		string(instructors), req.Type, req.JoinCode, instanceScenarioID, req.TeamCount,
		req.PeopleCount, req.PositionCount, boolInt(req.LocationRequired), sqlTime(scheduledAt))
	v, err := s.scanRealization(row)
	if err != nil {
		return RealizationView{}, err
	}

	// One team per declared slot, created up front.
	for slot := 1; slot <= req.TeamCount; slot++ {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, realization_id, slot_number) VALUES (?, ?, ?)
		`, newID(), id, slot); err != nil {
			return RealizationView{}, err
		}
	}

	if err := s.appendRealizationLog(ctx, tx, id, "realization created"); err != nil {
		return RealizationView{}, err
	}
	if err := tx.Commit(); err != nil {
		return RealizationView{}, err
	}
	return v, nil
}

func (s *SQLiteStore) GetRealization(ctx context.Context, id string) (RealizationView, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+realizationColumns+` FROM realizations WHERE id = ?
	`, id)
	v, err := s.scanRealization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}

	v.Log, err = s.realizationLog(ctx, id)
	return v, err
}

func (s *SQLiteStore) UpdateRealization(ctx context.Context, id string, req RealizationRequest) (RealizationView, error) {
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return RealizationView{}, fmt.Errorf("parsing scheduledAt: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RealizationView{}, err
	}
	defer tx.Rollback()

	var currentScenarioID string
	var currentTeamCount int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(scenario_id, ''), team_count FROM realizations WHERE id = ?
	`, id).Scan(&currentScenarioID, &currentTeamCount)
	if errors.Is(err, sql.ErrNoRows) {
		return RealizationView{}, ErrNotFound
	}
	if err != nil {
		return RealizationView{}, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM realizations WHERE join_code = ? COLLATE NOCASE AND id != ?
	`, req.JoinCode, id).Scan(&count); err != nil {
		return RealizationView{}, err
	}
	if count > 0 {
		return RealizationView{}, ErrJoinCodeTaken
	}

	// Reassigning the scenario replaces the whole instance tree with a fresh
	// clone of the new template. Edits within the current scenario go through
	// UpdateRealizationStations instead.
	scenarioID := currentScenarioID
	var currentTemplateID string
	if currentScenarioID != "" {
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(source_template_id, '') FROM scenarios WHERE id = ?
		`, currentScenarioID).Scan(&currentTemplateID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return RealizationView{}, err
		}
	}
	if req.ScenarioID != "" && req.ScenarioID != currentTemplateID && req.ScenarioID != currentScenarioID {
		// Detach before deleting: realizations.scenario_id still references
		// the old instance and foreign keys are enforced.
		if _, err := tx.ExecContext(ctx, `
			UPDATE realizations SET scenario_id = NULL WHERE id = ?
		`, id); err != nil {
			return RealizationView{}, err
		}
		if err := s.deleteScenarioInstance(ctx, tx, currentScenarioID); err != nil {
			return RealizationView{}, err
		}
		scenarioID, err = s.cloneScenario(ctx, tx, req.ScenarioID, id)
		if err != nil {
			return RealizationView{}, err
		}
		if err := s.appendRealizationLog(ctx, tx, id, "scenario reassigned"); err != nil {
			return RealizationView{}, err
		}
	}

	instructors, _ := json.Marshal(req.Instructors)
	row := tx.QueryRowContext(ctx, `
		UPDATE realizations SET company = ?, contact_name = ?, contact_email = ?,
			contact_phone = ?, instructors = ?, type = ?, join_code = ?, scenario_id = ?,
			team_count = ?, people_count = ?, position_count = ?, location_required = ?,
			scheduled_at = ?, done = ?
		WHERE id = ?
		RETURNING `+realizationColumns+`
	`, req.Company, req.ContactName, req.ContactEmail, req.ContactPhone,
		string(instructors), req.Type, req.JoinCode, scenarioID, req.TeamCount,
		req.PeopleCount, req.PositionCount, boolInt(req.LocationRequired),
		sqlTime(scheduledAt), boolInt(req.Done), id)
	v, err := s.scanRealization(row)
	if err != nil {
		return RealizationView{}, err
	}

	// Team slots only ever grow; existing slots keep their state.
	for slot := currentTeamCount + 1; slot <= req.TeamCount; slot++ {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, realization_id, slot_number) VALUES (?, ?, ?)
		`, newID(), id, slot); err != nil {
			return RealizationView{}, err
		}
	}

	if err := s.appendRealizationLog(ctx, tx, id, "realization updated"); err != nil {
		return RealizationView{}, err
	}
	if err := tx.Commit(); err != nil {
		return RealizationView{}, err
	}
	return v, nil
}

func (s *SQLiteStore) DeleteRealization(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var scenarioID string
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(scenario_id, '') FROM realizations WHERE id = ?
	`, id).Scan(&scenarioID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM realizations WHERE id = ?`, id); err != nil {
		return err
	}
	if err := s.deleteScenarioInstance(ctx, tx, scenarioID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) appendRealizationLog(ctx context.Context, q querier, realizationID, entry string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO realization_log (realization_id, entry) VALUES (?, ?)
	`, realizationID, entry)
	return err
}

func (s *SQLiteStore) realizationLog(ctx context.Context, realizationID string) ([]LogEntryView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry, created_at FROM realization_log
		WHERE realization_id = ? ORDER BY id
	`, realizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	log := []LogEntryView{}
	for rows.Next() {
		var e LogEntryView
		if err := rows.Scan(&e.Entry, &e.CreatedAt); err != nil {
			return nil, err
		}
		log = append(log, e)
	}
	return log, rows.Err()
}

// cloneScenario deep-clones a scenario template and its stations into
// realization-scoped instances with fresh ids, stamping lineage.
func (s *SQLiteStore) cloneScenario(ctx context.Context, tx *sql.Tx, templateID, realizationID string) (string, error) {
	if templateID == "" {
		return "", nil
	}

	var name, description string
	err := tx.QueryRowContext(ctx, `
		SELECT name, description FROM scenarios WHERE id = ? AND realization_id IS NULL
	`, templateID).Scan(&name, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	instanceID := newID()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scenarios (id, name, description, source_template_id, realization_id)
		VALUES (?, ?, ?, ?, ?)
	`, instanceID, name, description, templateID, realizationID); err != nil {
		return "", err
	}

	stationIDs, err := s.scenarioStationIDs(ctx, tx, templateID)
	if err != nil {
		return "", err
	}
	for i, stationID := range stationIDs {
		copyID := newID()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stations (id, name, type, description, image, points,
				time_limit_sec, source_template_id, scenario_instance_id, realization_id)
			SELECT ?, name, type, description, image, points, time_limit_sec, id, ?, ?
			FROM stations WHERE id = ?
		`, copyID, instanceID, realizationID, stationID); err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scenario_stations (scenario_id, station_id, position)
			VALUES (?, ?, ?)
		`, instanceID, copyID, i); err != nil {
			return "", err
		}
	}
	return instanceID, nil
}

func (s *SQLiteStore) deleteScenarioInstance(ctx context.Context, tx *sql.Tx, scenarioID string) error {
	if scenarioID == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM stations WHERE scenario_instance_id = ?
	`, scenarioID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		DELETE FROM scenarios WHERE id = ? AND realization_id IS NOT NULL
	`, scenarioID)
	return err
}

func (s *SQLiteStore) ListRealizationStations(ctx context.Context, id string) ([]StationView, error) {
	var scenarioID string
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(scenario_id, '') FROM realizations WHERE id = ?
	`, id).Scan(&scenarioID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.instanceStations(ctx, s.db, scenarioID)
}

func (s *SQLiteStore) instanceStations(ctx context.Context, q querier, scenarioID string) ([]StationView, error) {
	stations := []StationView{}
	if scenarioID == "" {
		return stations, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+prefixedStationColumns("st")+`
		FROM stations st
		JOIN scenario_stations ss ON ss.station_id = st.id
		WHERE ss.scenario_id = ?
		ORDER BY ss.position
	`, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, v)
	}
	return stations, rows.Err()
}

// UpdateRealizationStations reconciles an admin's station draft against the
// realization's instances. Drafts match an instance by id, or by the
// instance's source template id for drafts that still reference the original
// template. Matched instances are updated in place, missing ones deleted,
// unmatched drafts created as fresh instances. Templates are never touched.
func (s *SQLiteStore) UpdateRealizationStations(ctx context.Context, id string, drafts []StationDraft) ([]StationView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var scenarioID string
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(scenario_id, '') FROM realizations WHERE id = ?
	`, id).Scan(&scenarioID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if scenarioID == "" {
		return nil, ErrNotFound
	}

	existing, err := s.instanceStations(ctx, tx, scenarioID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]StationView, len(existing))
	byTemplate := make(map[string]StationView, len(existing))
	for _, st := range existing {
		byID[st.ID] = st
		if st.SourceTemplateID != "" {
			byTemplate[st.SourceTemplateID] = st
		}
	}

	kept := make(map[string]bool, len(drafts))
	orderedIDs := make([]string, 0, len(drafts))
	for _, draft := range drafts {
		target, ok := byID[draft.ID]
		if !ok {
			target, ok = byTemplate[draft.ID]
		}

		if ok {
			if _, err := tx.ExecContext(ctx, `
				UPDATE stations SET name = ?, type = ?, description = ?, image = ?,
					points = ?, time_limit_sec = ?
				WHERE id = ?
			`, draft.Name, draft.Type, draft.Description, draft.Image, draft.Points,
				draft.TimeLimitSec, target.ID); err != nil {
				return nil, err
			}
			kept[target.ID] = true
			orderedIDs = append(orderedIDs, target.ID)
			continue
		}

		copyID := newID()
		sourceID := sql.NullString{String: draft.ID, Valid: draft.ID != ""}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stations (id, name, type, description, image, points,
				time_limit_sec, source_template_id, scenario_instance_id, realization_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, copyID, draft.Name, draft.Type, draft.Description, draft.Image, draft.Points,
			draft.TimeLimitSec, sourceID, scenarioID, id); err != nil {
			return nil, err
		}
		kept[copyID] = true
		orderedIDs = append(orderedIDs, copyID)
	}

	for _, st := range existing {
		if !kept[st.ID] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM stations WHERE id = ?`, st.ID); err != nil {
				return nil, err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scenario_stations WHERE scenario_id = ?`, scenarioID); err != nil {
		return nil, err
	}
	for i, stationID := range orderedIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scenario_stations (scenario_id, station_id, position)
			VALUES (?, ?, ?)
		`, scenarioID, stationID, i); err != nil {
			return nil, err
		}
	}

	if err := s.appendRealizationLog(ctx, tx, id, "stations updated"); err != nil {
		return nil, err
	}

	stations, err := s.instanceStations(ctx, tx, scenarioID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stations, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func prefixedStationColumns(alias string) string {
	return alias + `.id, ` + alias + `.name, ` + alias + `.type, ` + alias + `.description, ` +
		alias + `.image, ` + alias + `.points, ` + alias + `.time_limit_sec,
	COALESCE(` + alias + `.source_template_id, ''), COALESCE(` + alias + `.scenario_instance_id, ''),
	COALESCE(` + alias + `.realization_id, ''), ` + alias + `.created_at`
}
