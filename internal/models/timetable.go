package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableStatus represents lifecycle phases for saved timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Timetable is a versioned, persisted schedule for one scope.
type Timetable struct {
	ID            string          `db:"id" json:"id"`
	ScopeKey      string          `db:"scope_key" json:"scope_key"`
	Semester      int             `db:"semester" json:"semester"`
	ProgramID     *string         `db:"program_id" json:"program_id,omitempty"`
	ClassID       *string         `db:"class_id" json:"class_id,omitempty"`
	Version       int             `db:"version" json:"version"`
	Status        TimetableStatus `db:"status" json:"status"`
	Algorithm     *string         `db:"algorithm" json:"algorithm,omitempty"`
	WeightedScore int             `db:"weighted_score" json:"weighted_score"`
	Satisfaction  float64         `db:"satisfaction" json:"satisfaction"`
	SessionCount  int             `db:"session_count" json:"session_count"`
	Meta          types.JSONText  `db:"meta" json:"meta"`
	CreatedBy     *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableSession is one stored session row of a timetable.
type TimetableSession struct {
	ID          string    `db:"id" json:"id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	SessionKey  string    `db:"session_key" json:"session_key"`
	UnitID      string    `db:"unit_id" json:"unit_id"`
	LecturerID  string    `db:"lecturer_id" json:"lecturer_id"`
	GroupID     string    `db:"group_id" json:"group_id"`
	Subgroup    *string   `db:"subgroup" json:"subgroup,omitempty"`
	Attendance  int       `db:"attendance" json:"attendance"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	SlotID      *string   `db:"slot_id" json:"slot_id,omitempty"`
	VenueID     string    `db:"venue_id" json:"venue_id"`
	Mode        string    `db:"mode" json:"mode"`
	Block       int       `db:"block" json:"block"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TimetableFilter narrows timetable listings.
type TimetableFilter struct {
	Semester  int
	ProgramID string
	ClassID   string
	Status    TimetableStatus
	Page      int
	PageSize  int
}
