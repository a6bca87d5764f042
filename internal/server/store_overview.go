package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/survivorquest/eventops/internal/survivorquest"
)

// Overview builds the admin's live view of a realization. The id "current"
// resolves by priority: any in-progress realization, else the soonest planned
// one, else the most recently scheduled overall. Reading normalizes status:
// a realization past its event window is demoted to done and that sticks.
func (s *SQLiteStore) Overview(ctx context.Context, id string) (OverviewResponse, error) {
	if id == "current" {
		resolved, err := s.resolveCurrent(ctx)
		if err != nil {
			return OverviewResponse{}, err
		}
		id = resolved
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+realizationColumns+` FROM realizations WHERE id = ?
	`, id)
	realization, err := s.scanRealization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return OverviewResponse{}, ErrNotFound
	}
	if err != nil {
		return OverviewResponse{}, err
	}

	// Persist the time-based demotion so the status stays done even if the
	// clock assumptions later change.
	if realization.Status == string(survivorquest.StatusDone) {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE realizations SET done = 1 WHERE id = ? AND done = 0
		`, id); err != nil {
			return OverviewResponse{}, err
		}
	}

	teams, err := s.overviewTeams(ctx, realization)
	if err != nil {
		return OverviewResponse{}, err
	}

	events, err := s.overviewEvents(ctx, id)
	if err != nil {
		return OverviewResponse{}, err
	}

	stats := OverviewStats{Events: len(events)}
	for _, t := range teams {
		if t.Status == string(survivorquest.TeamActive) {
			stats.ActiveTeams++
		}
		stats.TasksCompleted += t.TaskStats.Done
		stats.TotalPoints += t.Points
	}

	return OverviewResponse{
		Realization: realization,
		Teams:       teams,
		Events:      events,
		Stats:       stats,
	}, nil
}

func (s *SQLiteStore) resolveCurrent(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scheduled_at, done FROM realizations
	`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	now := s.now()
	var inProgress, planned, latest string
	var plannedAt, latestAt string
	found := false
	for rows.Next() {
		var id, scheduledAt string
		var done int
		if err := rows.Scan(&id, &scheduledAt, &done); err != nil {
			return "", err
		}
		found = true

		switch survivorquest.DeriveStatus(parseSQLTime(scheduledAt), done != 0, now) {
		case survivorquest.StatusInProgress:
			if inProgress == "" {
				inProgress = id
			}
		case survivorquest.StatusPlanned:
			if planned == "" || scheduledAt < plannedAt {
				planned, plannedAt = id, scheduledAt
			}
		}
		if latest == "" || scheduledAt > latestAt {
			latest, latestAt = id, scheduledAt
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotFound
	}

	switch {
	case inProgress != "":
		return inProgress, nil
	case planned != "":
		return planned, nil
	default:
		return latest, nil
	}
}

func (s *SQLiteStore) overviewTeams(ctx context.Context, realization RealizationView) ([]OverviewTeam, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM teams WHERE realization_id = ? ORDER BY slot_number
	`, realization.ID)
	if err != nil {
		return nil, err
	}
	teamIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		teamIDs = append(teamIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	teams := []OverviewTeam{}
	for _, teamID := range teamIDs {
		team, err := s.teamView(ctx, s.db, teamID)
		if err != nil {
			return nil, err
		}

		devices, err := s.liveDevices(ctx, teamID)
		if err != nil {
			return nil, err
		}

		tasks, err := s.taskViews(ctx, s.db, realization.ScenarioID, teamID)
		if err != nil {
			return nil, err
		}

		teams = append(teams, OverviewTeam{
			TeamView: team,
			Devices:  devices,
			Tasks:    tasks,
		})
	}
	return teams, nil
}

// liveDevices lists a team's unexpired assignments.
func (s *SQLiteStore) liveDevices(ctx context.Context, teamID string) ([]DeviceView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, member_name, last_seen_at, expires_at
		FROM team_assignments
		WHERE team_id = ? AND expires_at > ?
		ORDER BY created_at
	`, teamID, sqlTime(s.now()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := []DeviceView{}
	for rows.Next() {
		var d DeviceView
		if err := rows.Scan(&d.DeviceID, &d.MemberName, &d.LastSeenAt, &d.ExpiresAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (s *SQLiteStore) overviewEvents(ctx context.Context, realizationID string) ([]EventView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(team_id, ''), type, actor_type, actor_id, payload, created_at
		FROM events
		WHERE realization_id = ?
		ORDER BY id DESC
	`, realizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []EventView{}
	for rows.Next() {
		var e EventView
		var payload string
		if err := rows.Scan(&e.ID, &e.TeamID, &e.Type, &e.ActorType, &e.ActorID, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}
