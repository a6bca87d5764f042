package server

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SeedDemo creates a demo admin, station templates, a scenario, and a
// realization with join code BL2026 if the database is empty.
// Idempotent: does nothing if an admin already exists.
func SeedDemo(ctx context.Context, logger *slog.Logger, store *SQLiteStore) error {
	var count int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := store.db.ExecContext(ctx, `
		INSERT INTO admins (email, password_hash) VALUES (?, ?)
	`, "admin@survivorquest.example", string(hash)); err != nil {
		return err
	}

	stations := []struct {
		id, name, typ string
		points, limit int
	}{
		{"g-1", "Knot Quiz", "quiz", 120, 300},
		{"g-2", "River Crossing", "points", 180, 0},
		{"g-3", "Fire Relay", "time", 150, 600},
	}
	for _, st := range stations {
		if _, err := store.db.ExecContext(ctx, `
			INSERT INTO stations (id, name, type, points, time_limit_sec)
			VALUES (?, ?, ?, ?, ?)
		`, st.id, st.name, st.typ, st.points, st.limit); err != nil {
			return err
		}
	}

	if _, err := store.db.ExecContext(ctx, `
		INSERT INTO scenarios (id, name, description) VALUES ('s-1', 'Forest Classic', 'Three-station outdoor round')
	`); err != nil {
		return err
	}
	for i, stationID := range []string{"g-1", "g-2", "g-3"} {
		if _, err := store.db.ExecContext(ctx, `
			INSERT INTO scenario_stations (scenario_id, station_id, position) VALUES ('s-1', ?, ?)
		`, stationID, i); err != nil {
			return err
		}
	}

	if _, err := store.CreateRealization(ctx, RealizationRequest{
		Company:     "Blue Lake Retreats",
		ContactName: "Demo Contact",
		Type:        "outdoor",
		JoinCode:    "BL2026",
		ScenarioID:  "s-1",
		TeamCount:   6,
		PeopleCount: 30,
		ScheduledAt: store.now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}

	logger.Info("demo data seeded", "joinCode", "BL2026")
	return nil
}
