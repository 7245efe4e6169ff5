package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/timetable"
)

// SnapshotRepository reads the scheduling catalog (units, lecturers, groups, venues, slots).
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Load returns the catalog for a scope. Units are narrowed by semester and program; the other
// catalogs are loaded whole because units reference them freely.
func (r *SnapshotRepository) Load(ctx context.Context, scope timetable.Scope) (timetable.Snapshot, error) {
	var snapshot timetable.Snapshot

	where, args := unitScope(scope)
	unitsQuery := `SELECT u.id, u.code, u.credit_hours, u.program_id, u.semester,
COALESCE(array_agg(ug.group_id ORDER BY ug.group_id) FILTER (WHERE ug.group_id IS NOT NULL), '{}') AS group_ids
FROM units u LEFT JOIN unit_groups ug ON ug.unit_id = u.id` + where + `
GROUP BY u.id ORDER BY u.code`
	var units []models.UnitRecord
	if err := r.db.SelectContext(ctx, &units, unitsQuery, args...); err != nil {
		return snapshot, fmt.Errorf("load units: %w", err)
	}

	const lecturersQuery = `SELECT l.id, l.code,
COALESCE(array_agg(lu.unit_id ORDER BY lu.unit_id) FILTER (WHERE lu.unit_id IS NOT NULL), '{}') AS unit_ids
FROM lecturers l LEFT JOIN lecturer_units lu ON lu.lecturer_id = l.id
GROUP BY l.id ORDER BY l.id`
	var lecturers []models.LecturerRecord
	if err := r.db.SelectContext(ctx, &lecturers, lecturersQuery); err != nil {
		return snapshot, fmt.Errorf("load lecturers: %w", err)
	}

	const groupsQuery = `SELECT id, name, class_id, student_count FROM student_groups ORDER BY id`
	var groups []models.GroupRecord
	if err := r.db.SelectContext(ctx, &groups, groupsQuery); err != nil {
		return snapshot, fmt.Errorf("load groups: %w", err)
	}

	const venuesQuery = `SELECT id, name, capacity, location, online_capable FROM venues ORDER BY id`
	var venues []models.VenueRecord
	if err := r.db.SelectContext(ctx, &venues, venuesQuery); err != nil {
		return snapshot, fmt.Errorf("load venues: %w", err)
	}

	const slotsQuery = `SELECT id, day_of_week, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time
FROM time_slots ORDER BY day_of_week, start_time`
	var slots []models.TimeSlotRecord
	if err := r.db.SelectContext(ctx, &slots, slotsQuery); err != nil {
		return snapshot, fmt.Errorf("load time slots: %w", err)
	}

	for _, u := range units {
		snapshot.Units = append(snapshot.Units, timetable.Unit{
			ID: u.ID, Code: u.Code, CreditHours: u.CreditHours, ProgramID: u.ProgramID,
			Semester: u.Semester, GroupIDs: []string(u.GroupIDs),
		})
	}
	for _, l := range lecturers {
		snapshot.Lecturers = append(snapshot.Lecturers, timetable.Lecturer{ID: l.ID, Code: l.Code, UnitIDs: []string(l.UnitIDs)})
	}
	for _, g := range groups {
		snapshot.Groups = append(snapshot.Groups, timetable.Group{ID: g.ID, Name: g.Name, ClassID: g.ClassID, StudentCount: g.StudentCount})
	}
	for _, v := range venues {
		snapshot.Venues = append(snapshot.Venues, timetable.Venue{
			ID: v.ID, Name: v.Name, Capacity: v.Capacity, Location: v.Location, OnlineCapable: v.OnlineCapable,
		})
	}
	for _, s := range slots {
		slot, err := slotFromRecord(s)
		if err != nil {
			return snapshot, err
		}
		snapshot.Slots = append(snapshot.Slots, slot)
	}
	return snapshot, nil
}

// LecturerAssignments returns the pinned unit to lecturer mapping for units in scope.
func (r *SnapshotRepository) LecturerAssignments(ctx context.Context, scope timetable.Scope) (timetable.LecturerAssignments, error) {
	where, args := unitScope(scope)
	query := `SELECT la.unit_id, la.lecturer_id FROM lecturer_assignments la JOIN units u ON u.id = la.unit_id` + where + ` ORDER BY la.unit_id`
	var rows []models.AssignmentRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load lecturer assignments: %w", err)
	}
	assignments := make(timetable.LecturerAssignments, len(rows))
	for _, row := range rows {
		assignments[row.UnitID] = row.LecturerID
	}
	return assignments, nil
}

func unitScope(scope timetable.Scope) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if scope.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("u.semester = $%d", len(args)+1))
		args = append(args, scope.Semester)
	}
	if scope.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("u.program_id = $%d", len(args)+1))
		args = append(args, scope.ProgramID)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func slotFromRecord(s models.TimeSlotRecord) (timetable.TimeSlot, error) {
	start, err := timetable.ParseClock(s.StartTime)
	if err != nil {
		return timetable.TimeSlot{}, fmt.Errorf("time slot %s: %w", s.ID, err)
	}
	end, err := timetable.ParseClock(s.EndTime)
	if err != nil {
		return timetable.TimeSlot{}, fmt.Errorf("time slot %s: %w", s.ID, err)
	}
	return timetable.TimeSlot{ID: s.ID, Day: timetable.Weekday(s.DayOfWeek), Start: start, End: end}, nil
}
