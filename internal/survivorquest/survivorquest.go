// Package survivorquest defines the core domain types and derivations.
// It has zero external dependencies — everything here is pure Go.
package survivorquest

import (
	"math"
	"time"
)

type StationType string

const (
	StationQuiz   StationType = "quiz"
	StationTime   StationType = "time"
	StationPoints StationType = "points"
)

// MaxTimeLimit bounds a station's time limit in seconds.
const MaxTimeLimit = 600

// InstanceRef marks a station or scenario as a realization-scoped clone.
// A nil reference means the record is a reusable template.
type InstanceRef struct {
	ScenarioID    string
	RealizationID string
}

type Station struct {
	ID               string
	Name             string
	Type             StationType
	Description      string
	Image            string
	Points           int
	TimeLimitSec     int
	SourceTemplateID string
	Instance         *InstanceRef
	CreatedAt        time.Time
}

func (s Station) IsTemplate() bool { return s.Instance == nil }

type Scenario struct {
	ID               string
	Name             string
	Description      string
	StationIDs       []string
	SourceTemplateID string
	RealizationID    string // empty for templates
	CreatedAt        time.Time
}

func (s Scenario) IsTemplate() bool { return s.RealizationID == "" }

type RealizationStatus string

const (
	StatusPlanned    RealizationStatus = "planned"
	StatusInProgress RealizationStatus = "in-progress"
	StatusDone       RealizationStatus = "done"
)

// EventWindow is how long after its scheduled time a realization counts as
// running before it is demoted to done.
const EventWindow = 24 * time.Hour

// DeriveStatus computes a realization's status from its scheduled time.
// An explicit done flag is sticky and wins over the time derivation.
func DeriveStatus(scheduledAt time.Time, done bool, now time.Time) RealizationStatus {
	switch {
	case done, now.After(scheduledAt.Add(EventWindow)):
		return StatusDone
	case !now.Before(scheduledAt):
		return StatusInProgress
	default:
		return StatusPlanned
	}
}

// RequiredDevices is the device count an event needs: one per team plus two
// spares for the instructors.
func RequiredDevices(teamCount int) int { return teamCount + 2 }

type Realization struct {
	ID               string
	Company          string
	ContactName      string
	ContactEmail     string
	ContactPhone     string
	Instructors      []string
	Type             string
	JoinCode         string
	ScenarioID       string // realization-scoped scenario instance
	TeamCount        int
	PeopleCount      int
	PositionCount    int
	LocationRequired bool
	ScheduledAt      time.Time
	Done             bool
	CreatedAt        time.Time
}

func (r Realization) Status(now time.Time) RealizationStatus {
	return DeriveStatus(r.ScheduledAt, r.Done, now)
}

type TeamStatus string

const (
	TeamUnassigned TeamStatus = "unassigned"
	TeamActive     TeamStatus = "active"
	TeamOffline    TeamStatus = "offline"
)

// ActiveWindow is how recently a team's device must have been seen for the
// team to count as active.
const ActiveWindow = 5 * time.Minute

// DeriveTeamStatus computes a team's status. joined is true once any device
// has ever held the slot; lastSeen is the newest last-seen timestamp across
// the team's live assignments (zero when there are none).
func DeriveTeamStatus(joined bool, lastSeen time.Time, now time.Time) TeamStatus {
	switch {
	case !joined:
		return TeamUnassigned
	case !lastSeen.IsZero() && now.Sub(lastSeen) <= ActiveWindow:
		return TeamActive
	default:
		return TeamOffline
	}
}

// SessionTTL is the sliding expiry on a team session. Every authenticated
// call pushes the deadline out again, so only idle devices expire.
const SessionTTL = 12 * time.Hour

// ValidCoordinates reports whether lat/lng form a real point on the globe.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Event types recorded in the realization audit log.
const (
	EventTeamJoined         = "team_joined"
	EventTeamRenamed        = "team_renamed"
	EventTeamColorSet       = "team_color_set"
	EventTeamBadgeSet       = "team_badge_set"
	EventTeamNameRandomized = "team_name_randomized"
	EventLocationUpdated    = "location_updated"
	EventTaskCompleted      = "task_completed"
	EventPointsRecalculated = "points_recalculated"
)
