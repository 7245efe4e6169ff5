package timetable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func slot(id string, day Weekday, start, end string) TimeSlot {
	return TimeSlot{ID: id, Day: day, Start: MustClock(start), End: MustClock(end)}
}

func newEngine(t *testing.T, snapshot Snapshot, opts ...Option) *Engine {
	t.Helper()
	engine, err := New(snapshot, opts...)
	require.NoError(t, err)
	return engine
}

// bit301Snapshot is one 4-credit unit, one lecturer, one group of 20, one room of 20 and
// three slots.
func bit301Snapshot() Snapshot {
	return Snapshot{
		Units:     []Unit{{ID: "u-1", Code: "BIT301", CreditHours: 4, ProgramID: "bit", Semester: 1, GroupIDs: []string{"g-1"}}},
		Lecturers: []Lecturer{{ID: "l-1", Code: "LEC1", UnitIDs: []string{"u-1"}}},
		Groups:    []Group{{ID: "g-1", Name: "BIT Y3", ClassID: "c-1", StudentCount: 20}},
		Venues:    []Venue{{ID: "v-1", Name: "Lab 1", Capacity: 20, Location: "Block A"}},
		Slots: []TimeSlot{
			slot("1", 1, "08:00", "10:00"),
			slot("2", 1, "10:00", "12:00"),
			slot("3", 2, "08:00", "10:00"),
		},
	}
}

// mixedSnapshot has units of every credit-hour value, a physical room and a virtual room.
func mixedSnapshot() Snapshot {
	return Snapshot{
		Units: []Unit{
			{ID: "u-2", Code: "BIT202", CreditHours: 2, ProgramID: "bit", Semester: 2, GroupIDs: []string{"g-1"}},
			{ID: "u-3", Code: "BIT203", CreditHours: 3, ProgramID: "bit", Semester: 2, GroupIDs: []string{"g-1", "g-2"}},
			{ID: "u-4", Code: "BIT204", CreditHours: 4, ProgramID: "bit", Semester: 2, GroupIDs: []string{"g-2"}},
		},
		Lecturers: []Lecturer{
			{ID: "l-1", Code: "LEC1", UnitIDs: []string{"u-2", "u-3"}},
			{ID: "l-2", Code: "LEC2", UnitIDs: []string{"u-4"}},
		},
		Groups: []Group{
			{ID: "g-1", Name: "BIT Y2 A", ClassID: "c-1", StudentCount: 30},
			{ID: "g-2", Name: "BIT Y2 B", ClassID: "c-2", StudentCount: 25},
		},
		Venues: []Venue{
			{ID: "hall", Name: "Hall", Capacity: 40, Location: "Block B"},
			{ID: "zoom", Name: "Virtual", OnlineCapable: true},
		},
		Slots: []TimeSlot{
			slot("1", 1, "08:00", "10:00"),
			slot("2", 1, "10:00", "12:00"),
			slot("3", 2, "08:00", "10:00"),
			slot("4", 2, "10:00", "12:00"),
			slot("5", 3, "08:00", "09:00"),
			slot("6", 3, "09:00", "10:00"),
		},
	}
}

// smallCSP is 3 units, 2 lecturers, 2 venues and 4 slots with every constraint satisfiable.
func smallCSP() Snapshot {
	return Snapshot{
		Units: []Unit{
			{ID: "u-1", Code: "CS101", CreditHours: 2, GroupIDs: []string{"g-1"}},
			{ID: "u-2", Code: "CS102", CreditHours: 2, GroupIDs: []string{"g-1"}},
			{ID: "u-3", Code: "CS103", CreditHours: 2, GroupIDs: []string{"g-2"}},
		},
		Lecturers: []Lecturer{
			{ID: "l-1", UnitIDs: []string{"u-1", "u-2"}},
			{ID: "l-2", UnitIDs: []string{"u-3"}},
		},
		Groups: []Group{
			{ID: "g-1", StudentCount: 30},
			{ID: "g-2", StudentCount: 30},
		},
		Venues: []Venue{
			{ID: "v-1", Capacity: 30},
			{ID: "v-2", Capacity: 40},
		},
		Slots: []TimeSlot{
			slot("1", 1, "08:00", "10:00"),
			slot("2", 1, "10:00", "12:00"),
			slot("3", 2, "08:00", "10:00"),
			slot("4", 2, "10:00", "12:00"),
		},
	}
}

// stacked places every unit's single block in the first slot and venue, which clashes.
func stacked(snapshot Snapshot, lecturerOf map[string]string) []Session {
	first := snapshot.Slots[0]
	sessions := make([]Session, 0, len(snapshot.Units))
	for _, u := range snapshot.Units {
		for _, g := range u.GroupIDs {
			sessions = append(sessions, Session{
				ID:         u.Code + "-" + g + "-1",
				UnitID:     u.ID,
				LecturerID: lecturerOf[u.ID],
				GroupID:    g,
				Day:        first.Day,
				Start:      first.Start,
				End:        first.End,
				SlotID:     first.ID,
				VenueID:    snapshot.Venues[0].ID,
				Mode:       ModePhysical,
				Block:      1,
			})
		}
	}
	return sessions
}

func smallCSPSessions() []Session {
	return stacked(smallCSP(), map[string]string{"u-1": "l-1", "u-2": "l-1", "u-3": "l-2"})
}

// oneLecturerFiveUnits cannot be solved: five 2-hour blocks for one lecturer, four slots.
func oneLecturerFiveUnits() (Snapshot, []Session) {
	snapshot := Snapshot{
		Lecturers: []Lecturer{{ID: "l-1"}},
		Venues: []Venue{
			{ID: "v-1", Capacity: 50},
			{ID: "v-2", Capacity: 50},
		},
		Slots: []TimeSlot{
			slot("1", 1, "08:00", "10:00"),
			slot("2", 1, "10:00", "12:00"),
			slot("3", 2, "08:00", "10:00"),
			slot("4", 2, "10:00", "12:00"),
		},
	}
	lecturerOf := make(map[string]string)
	for i, code := range []string{"MA1", "MA2", "MA3", "MA4", "MA5"} {
		id := "u-" + code
		group := "g-" + string(rune('1'+i))
		snapshot.Units = append(snapshot.Units, Unit{ID: id, Code: code, CreditHours: 2, GroupIDs: []string{group}})
		snapshot.Groups = append(snapshot.Groups, Group{ID: group, StudentCount: 10})
		snapshot.Lecturers[0].UnitIDs = append(snapshot.Lecturers[0].UnitIDs, id)
		lecturerOf[id] = "l-1"
	}
	return snapshot, stacked(snapshot, lecturerOf)
}

func conflictTypes(conflicts []Conflict) []ConflictType {
	out := make([]ConflictType, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, c.Type)
	}
	return out
}
