package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/survivorquest/eventops/internal/survivorquest"
)

// SessionFromToken resolves a bearer token to its device assignment. Expired
// assignments are evicted first, so an expired token reads as unknown. On
// success the TTL slides forward and last-seen is touched: a polling client
// never expires, only idle devices do.
func (s *SQLiteStore) SessionFromToken(ctx context.Context, token string) (teamSession, error) {
	now := s.now()
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM team_assignments WHERE expires_at <= ?
	`, sqlTime(now)); err != nil {
		return teamSession{}, err
	}

	var sess teamSession
	err := s.db.QueryRowContext(ctx, `
		SELECT id, team_id, realization_id, device_id
		FROM team_assignments
		WHERE token = ?
	`, token).Scan(&sess.AssignmentID, &sess.TeamID, &sess.RealizationID, &sess.DeviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return teamSession{}, errNoSession
	}
	if err != nil {
		return teamSession{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE team_assignments SET expires_at = ?, last_seen_at = ?
		WHERE id = ?
	`, sqlTime(now.Add(s.ttl)), sqlTime(now), sess.AssignmentID)
	return sess, err
}

// Join binds a device to a team slot. The free-slot scan and the assignment
// insert run in one transaction, so concurrent joins cannot double-book.
func (s *SQLiteStore) Join(ctx context.Context, joinCode, deviceID, memberName string) (JoinResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return JoinResponse{}, err
	}
	defer tx.Rollback()

	var realizationID string
	var locationRequired int
	err = tx.QueryRowContext(ctx, `
		SELECT id, location_required FROM realizations WHERE join_code = ? COLLATE NOCASE
	`, joinCode).Scan(&realizationID, &locationRequired)
	if errors.Is(err, sql.ErrNoRows) {
		return JoinResponse{}, ErrNotFound
	}
	if err != nil {
		return JoinResponse{}, err
	}

	now := s.now()

	// Idempotent re-join: a device holding a live assignment gets it back
	// with a refreshed TTL instead of a second slot.
	var assignmentID, teamID, token string
	err = tx.QueryRowContext(ctx, `
		SELECT id, team_id, token FROM team_assignments
		WHERE realization_id = ? AND device_id = ? AND expires_at > ?
	`, realizationID, deviceID, sqlTime(now)).Scan(&assignmentID, &teamID, &token)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return JoinResponse{}, err
	}

	if err == nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE team_assignments SET expires_at = ?, last_seen_at = ?
			WHERE id = ?
		`, sqlTime(now.Add(s.ttl)), sqlTime(now), assignmentID); err != nil {
			return JoinResponse{}, err
		}
	} else {
		// First-available allocation: the lowest-numbered slot with no live
		// assignment.
		err = tx.QueryRowContext(ctx, `
			SELECT t.id FROM teams t
			WHERE t.realization_id = ?
			  AND NOT EXISTS (
				SELECT 1 FROM team_assignments a
				WHERE a.team_id = t.id AND a.expires_at > ?
			  )
			ORDER BY t.slot_number
			LIMIT 1
		`, realizationID, sqlTime(now)).Scan(&teamID)
		if errors.Is(err, sql.ErrNoRows) {
			return JoinResponse{}, ErrNoFreeSlot
		}
		if err != nil {
			return JoinResponse{}, err
		}

		token = newToken()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO team_assignments (id, realization_id, team_id, device_id,
				member_name, token, expires_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, newID(), realizationID, teamID, deviceID, memberName, token,
			sqlTime(now.Add(s.ttl)), sqlTime(now)); err != nil {
			return JoinResponse{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE teams SET joined = 1 WHERE id = ?
		`, teamID); err != nil {
			return JoinResponse{}, err
		}
		if err := s.appendEvent(ctx, tx, realizationID, teamID, survivorquest.EventTeamJoined,
			"device", deviceID, map[string]any{"deviceId": deviceID, "memberName": memberName}); err != nil {
			return JoinResponse{}, err
		}
	}

	team, err := s.teamView(ctx, tx, teamID)
	if err != nil {
		return JoinResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return JoinResponse{}, err
	}

	return JoinResponse{
		SessionToken:     token,
		RealizationID:    realizationID,
		Team:             team,
		LocationRequired: locationRequired != 0,
	}, nil
}

func (s *SQLiteStore) SessionState(ctx context.Context, sess teamSession) (SessionStateResponse, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+realizationColumns+` FROM realizations WHERE id = ?
	`, sess.RealizationID)
	realization, err := s.scanRealization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionStateResponse{}, ErrNotFound
	}
	if err != nil {
		return SessionStateResponse{}, err
	}

	team, err := s.teamView(ctx, s.db, sess.TeamID)
	if err != nil {
		return SessionStateResponse{}, err
	}

	tasks, err := s.taskViews(ctx, s.db, realization.ScenarioID, sess.TeamID)
	if err != nil {
		return SessionStateResponse{}, err
	}

	return SessionStateResponse{
		Realization: RealizationSummary{
			ID:               realization.ID,
			Company:          realization.Company,
			Type:             realization.Type,
			Status:           realization.Status,
			ScheduledAt:      realization.ScheduledAt,
			LocationRequired: realization.LocationRequired,
		},
		Team:  team,
		Tasks: tasks,
	}, nil
}

// ClaimTeam sets the team's display name, color and optional badge. Every
// uniqueness check runs before any field is written, so a conflict leaves the
// team untouched.
func (s *SQLiteStore) ClaimTeam(ctx context.Context, sess teamSession, name, color, badge string) (TeamView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TeamView{}, err
	}
	defer tx.Rollback()

	var curName, curColor, curBadge sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT name, color, badge FROM teams WHERE id = ?
	`, sess.TeamID).Scan(&curName, &curColor, &curBadge)
	if errors.Is(err, sql.ErrNoRows) {
		return TeamView{}, ErrNotFound
	}
	if err != nil {
		return TeamView{}, err
	}

	// SQLite's lower() only folds ASCII, so the case-insensitive comparison
	// happens in Go.
	rows, err := tx.QueryContext(ctx, `
		SELECT name FROM teams
		WHERE realization_id = ? AND id != ? AND name IS NOT NULL
	`, sess.RealizationID, sess.TeamID)
	if err != nil {
		return TeamView{}, err
	}
	for rows.Next() {
		var other string
		if err := rows.Scan(&other); err != nil {
			rows.Close()
			return TeamView{}, err
		}
		if strings.EqualFold(other, name) {
			rows.Close()
			return TeamView{}, ErrNameTaken
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return TeamView{}, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM teams
		WHERE realization_id = ? AND id != ? AND color = ?
	`, sess.RealizationID, sess.TeamID, color).Scan(&count); err != nil {
		return TeamView{}, err
	}
	if count > 0 {
		return TeamView{}, ErrColorTaken
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE teams SET name = ?, color = ?, badge = COALESCE(NULLIF(?, ''), badge)
		WHERE id = ?
	`, name, color, badge, sess.TeamID); err != nil {
		return TeamView{}, err
	}

	// One audit event per field that actually changed.
	if curName.String != name {
		if err := s.appendEvent(ctx, tx, sess.RealizationID, sess.TeamID,
			survivorquest.EventTeamRenamed, "device", sess.DeviceID,
			map[string]any{"from": nullableString(curName), "to": name}); err != nil {
			return TeamView{}, err
		}
	}
	if curColor.String != color {
		if err := s.appendEvent(ctx, tx, sess.RealizationID, sess.TeamID,
			survivorquest.EventTeamColorSet, "device", sess.DeviceID,
			map[string]any{"from": nullableString(curColor), "to": color}); err != nil {
			return TeamView{}, err
		}
	}
	if badge != "" && curBadge.String != badge {
		if err := s.appendEvent(ctx, tx, sess.RealizationID, sess.TeamID,
			survivorquest.EventTeamBadgeSet, "device", sess.DeviceID,
			map[string]any{"from": nullableString(curBadge), "to": badge}); err != nil {
			return TeamView{}, err
		}
	}

	team, err := s.teamView(ctx, tx, sess.TeamID)
	if err != nil {
		return TeamView{}, err
	}
	return team, tx.Commit()
}

// RandomizeTeam draws a name from the funny-name pool, skipping names already
// used in the realization. A color is only assigned when the team has none;
// the badge is always re-rolled.
func (s *SQLiteStore) RandomizeTeam(ctx context.Context, sess teamSession) (TeamView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TeamView{}, err
	}
	defer tx.Rollback()

	var curColor sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT color FROM teams WHERE id = ?
	`, sess.TeamID).Scan(&curColor)
	if errors.Is(err, sql.ErrNoRows) {
		return TeamView{}, ErrNotFound
	}
	if err != nil {
		return TeamView{}, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT lower(name), COALESCE(color, '') FROM teams
		WHERE realization_id = ? AND name IS NOT NULL
	`, sess.RealizationID)
	if err != nil {
		return TeamView{}, err
	}
	usedNames := map[string]bool{}
	usedColors := []string{}
	for rows.Next() {
		var n, c string
		if err := rows.Scan(&n, &c); err != nil {
			rows.Close()
			return TeamView{}, err
		}
		usedNames[n] = true
		if c != "" {
			usedColors = append(usedColors, c)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return TeamView{}, err
	}

	name, ok := randomTeamName(usedNames)
	if !ok {
		return TeamView{}, ErrPoolExhausted
	}

	color := curColor.String
	if !curColor.Valid || curColor.String == "" {
		color = pickFreeColor(usedColors)
	}
	badge := randomBadge()

	if _, err := tx.ExecContext(ctx, `
		UPDATE teams SET name = ?, color = ?, badge = ? WHERE id = ?
	`, name, color, badge, sess.TeamID); err != nil {
		return TeamView{}, err
	}

	if err := s.appendEvent(ctx, tx, sess.RealizationID, sess.TeamID,
		survivorquest.EventTeamNameRandomized, "device", sess.DeviceID,
		map[string]any{"name": name, "color": color, "badge": badge}); err != nil {
		return TeamView{}, err
	}

	team, err := s.teamView(ctx, tx, sess.TeamID)
	if err != nil {
		return TeamView{}, err
	}
	return team, tx.Commit()
}

func (s *SQLiteStore) UpdateLocation(ctx context.Context, sess teamSession, loc LocationRequest) (TeamView, error) {
	ts := s.now()
	if loc.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, loc.Timestamp); err == nil {
			ts = parsed
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TeamView{}, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE teams SET last_lat = ?, last_lng = ?, last_accuracy = ?, last_location_at = ?
		WHERE id = ?
	`, loc.Lat, loc.Lng, loc.Accuracy, sqlTime(ts), sess.TeamID)
	if err != nil {
		return TeamView{}, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return TeamView{}, ErrNotFound
	}

	if err := s.appendEvent(ctx, tx, sess.RealizationID, sess.TeamID,
		survivorquest.EventLocationUpdated, "device", sess.DeviceID,
		map[string]any{"lat": loc.Lat, "lng": loc.Lng}); err != nil {
		return TeamView{}, err
	}

	team, err := s.teamView(ctx, tx, sess.TeamID)
	if err != nil {
		return TeamView{}, err
	}
	return team, tx.Commit()
}

// CompleteTask records a (team, station) completion exactly once and then
// recomputes the team's totals from scratch over all done progress rows, so
// the aggregate can never drift from the log.
func (s *SQLiteStore) CompleteTask(ctx context.Context, sess teamSession, stationID string, pointsAwarded int) (TaskCompleteResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TaskCompleteResponse{}, err
	}
	defer tx.Rollback()

	var defaultPoints int
	err = tx.QueryRowContext(ctx, `
		SELECT points FROM stations WHERE id = ? AND realization_id = ?
	`, stationID, sess.RealizationID).Scan(&defaultPoints)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskCompleteResponse{}, ErrNotFound
	}
	if err != nil {
		return TaskCompleteResponse{}, err
	}

	var locationRequired int
	var lastLocationAt sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT r.location_required, t.last_location_at
		FROM teams t JOIN realizations r ON r.id = t.realization_id
		WHERE t.id = ?
	`, sess.TeamID).Scan(&locationRequired, &lastLocationAt)
	if err != nil {
		return TaskCompleteResponse{}, err
	}
	if locationRequired != 0 && !lastLocationAt.Valid {
		return TaskCompleteResponse{}, errLocationRequired
	}

	var done int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM team_task_progress
		WHERE team_id = ? AND station_id = ? AND status = 'done'
	`, sess.TeamID, stationID).Scan(&done); err != nil {
		return TaskCompleteResponse{}, err
	}
	if done > 0 {
		return TaskCompleteResponse{}, ErrTaskDone
	}

	// A zero or missing award falls back to the station's own points.
	award := pointsAwarded
	if award <= 0 {
		award = defaultPoints
	}

	completedAt := sqlTime(s.now())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO team_task_progress (team_id, station_id, status, points_awarded, completed_at)
		VALUES (?, ?, 'done', ?, ?)
	`, sess.TeamID, stationID, award, completedAt); err != nil {
		return TaskCompleteResponse{}, err
	}

	// Full recomputation, not incremental.
	var totalPoints, tasksDone int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(points_awarded), 0), COUNT(*)
		FROM team_task_progress
		WHERE team_id = ? AND status = 'done'
	`, sess.TeamID).Scan(&totalPoints, &tasksDone); err != nil {
		return TaskCompleteResponse{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE teams SET points = ?, tasks_done = ? WHERE id = ?
	`, totalPoints, tasksDone, sess.TeamID); err != nil {
		return TaskCompleteResponse{}, err
	}

	if err := s.appendEvent(ctx, tx, sess.RealizationID, sess.TeamID,
		survivorquest.EventTaskCompleted, "device", sess.DeviceID,
		map[string]any{"stationId": stationID, "pointsAwarded": award}); err != nil {
		return TaskCompleteResponse{}, err
	}
	if err := s.appendEvent(ctx, tx, sess.RealizationID, sess.TeamID,
		survivorquest.EventPointsRecalculated, "device", sess.DeviceID,
		map[string]any{"points": totalPoints, "tasksDone": tasksDone}); err != nil {
		return TaskCompleteResponse{}, err
	}

	team, err := s.teamView(ctx, tx, sess.TeamID)
	if err != nil {
		return TaskCompleteResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return TaskCompleteResponse{}, err
	}

	return TaskCompleteResponse{
		Team: team,
		Task: TaskView{
			StationID:     stationID,
			Status:        "done",
			PointsAwarded: award,
			CompletedAt:   completedAt,
		},
	}, nil
}

// --- shared view builders ---

func (s *SQLiteStore) appendEvent(ctx context.Context, q querier, realizationID, teamID, eventType, actorType, actorID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO events (realization_id, team_id, type, actor_type, actor_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, realizationID, teamID, eventType, actorType, actorID, string(data), sqlTime(s.now()))
	return err
}

func (s *SQLiteStore) teamView(ctx context.Context, q querier, teamID string) (TeamView, error) {
	now := s.now()

	var v TeamView
	var name, color, badge, lastLocationAt, lastSeen sql.NullString
	var lat, lng, accuracy sql.NullFloat64
	var joined int
	err := q.QueryRowContext(ctx, `
		SELECT t.id, t.slot_number, t.name, t.color, t.badge, t.points, t.tasks_done,
			t.joined, t.last_lat, t.last_lng, t.last_accuracy, t.last_location_at,
			(SELECT COUNT(*) FROM stations st WHERE st.realization_id = t.realization_id),
			(SELECT MAX(a.last_seen_at) FROM team_assignments a
			 WHERE a.team_id = t.id AND a.expires_at > ?)
		FROM teams t
		WHERE t.id = ?
	`, sqlTime(now), teamID).Scan(&v.ID, &v.SlotNumber, &name, &color, &badge,
		&v.Points, &v.TaskStats.Done, &joined, &lat, &lng, &accuracy, &lastLocationAt,
		&v.TaskStats.Total, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}

	v.Name = nullableString(name)
	v.Color = nullableString(color)
	v.Badge = nullableString(badge)

	if lastLocationAt.Valid && lat.Valid && lng.Valid {
		loc := &LocationView{Lat: lat.Float64, Lng: lng.Float64, Timestamp: lastLocationAt.String}
		if accuracy.Valid {
			loc.Accuracy = &accuracy.Float64
		}
		v.LastLocation = loc
	}

	var seenAt time.Time
	if lastSeen.Valid {
		seenAt = parseSQLTime(lastSeen.String)
	}
	v.Status = string(survivorquest.DeriveTeamStatus(joined != 0, seenAt, now))
	return v, nil
}

func (s *SQLiteStore) taskViews(ctx context.Context, q querier, scenarioID, teamID string) ([]TaskView, error) {
	tasks := []TaskView{}
	if scenarioID == "" {
		return tasks, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT st.id, st.name, st.type, st.points, st.time_limit_sec,
			COALESCE(p.status, 'todo'), COALESCE(p.points_awarded, 0), COALESCE(p.completed_at, '')
		FROM stations st
		JOIN scenario_stations ss ON ss.station_id = st.id
		LEFT JOIN team_task_progress p ON p.station_id = st.id AND p.team_id = ?
		WHERE ss.scenario_id = ?
		ORDER BY ss.position
	`, teamID, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t TaskView
		if err := rows.Scan(&t.StationID, &t.Name, &t.Type, &t.Points, &t.TimeLimitSec,
			&t.Status, &t.PointsAwarded, &t.CompletedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func nullableString(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	v := s.String
	return &v
}
