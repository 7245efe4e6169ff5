package models

import "github.com/lib/pq"

// UnitRecord is a course unit row with its enrolled groups aggregated.
type UnitRecord struct {
	ID          string         `db:"id"`
	Code        string         `db:"code"`
	CreditHours int            `db:"credit_hours"`
	ProgramID   string         `db:"program_id"`
	Semester    int            `db:"semester"`
	GroupIDs    pq.StringArray `db:"group_ids"`
}

// LecturerRecord is a lecturer row with qualified unit ids aggregated.
type LecturerRecord struct {
	ID      string         `db:"id"`
	Code    string         `db:"code"`
	UnitIDs pq.StringArray `db:"unit_ids"`
}

// GroupRecord is a student group row.
type GroupRecord struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	ClassID      string `db:"class_id"`
	StudentCount int    `db:"student_count"`
}

// VenueRecord is a teaching venue row.
type VenueRecord struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	Capacity      int    `db:"capacity"`
	Location      string `db:"location"`
	OnlineCapable bool   `db:"online_capable"`
}

// TimeSlotRecord is a cataloged teaching window row.
type TimeSlotRecord struct {
	ID        string `db:"id"`
	DayOfWeek int    `db:"day_of_week"`
	StartTime string `db:"start_time"`
	EndTime   string `db:"end_time"`
}

// AssignmentRecord pins a lecturer to a unit.
type AssignmentRecord struct {
	UnitID     string `db:"unit_id"`
	LecturerID string `db:"lecturer_id"`
}
