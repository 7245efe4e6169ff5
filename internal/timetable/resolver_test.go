package timetable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oversizedGroupSnapshot() (Snapshot, []Session) {
	snapshot := Snapshot{
		Units:     []Unit{{ID: "u-1", Code: "LAW100", CreditHours: 2, GroupIDs: []string{"g-1"}}},
		Lecturers: []Lecturer{{ID: "l-1", UnitIDs: []string{"u-1"}}},
		Groups:    []Group{{ID: "g-1", StudentCount: 40}},
		Venues: []Venue{
			{ID: "v-1", Capacity: 20},
			{ID: "v-2", Capacity: 20},
		},
		Slots: []TimeSlot{
			slot("1", 1, "08:00", "10:00"),
			slot("2", 1, "10:00", "12:00"),
		},
	}
	sessions := []Session{{
		ID: "LAW100-g-1-1", UnitID: "u-1", LecturerID: "l-1", GroupID: "g-1",
		Day: 1, Start: MustClock("08:00"), End: MustClock("10:00"), SlotID: "1", VenueID: "v-1",
		Mode: ModePhysical, Block: 1,
	}}
	return snapshot, sessions
}

func TestResolveConflictFreeScheduleIsUnchanged(t *testing.T) {
	engine := newEngine(t, bit301Snapshot())
	generated, err := engine.Generate(context.Background(), Scope{}, nil)
	require.NoError(t, err)

	for _, strategy := range []Strategy{StrategyReschedule, StrategySplitGroups, StrategyAuto} {
		result, err := engine.Resolve(context.Background(), generated.Sessions, nil, strategy)
		require.NoError(t, err)
		assert.Equal(t, generated.Sessions, result.Sessions, strategy)
		assert.Empty(t, result.Actions, strategy)
		assert.Empty(t, result.Remaining, strategy)
	}
}

func TestResolveRescheduleMovesLaterSession(t *testing.T) {
	engine := newEngine(t, smallCSP())
	sessions := smallCSPSessions()
	before := CloneSessions(sessions)

	result, err := engine.Resolve(context.Background(), sessions, nil, StrategyReschedule)
	require.NoError(t, err)

	assert.Empty(t, result.Remaining)
	require.Len(t, result.Actions, 2)
	assert.Contains(t, result.Actions[0], "moved CS102-g-1-1")
	assert.Contains(t, result.Actions[1], "moved CS103-g-2-1")
	assert.Equal(t, "1", result.Sessions[0].SlotID)
	assert.Equal(t, before, sessions, "caller slice must not be modified")

	again, err := engine.Resolve(context.Background(), result.Sessions, nil, StrategyReschedule)
	require.NoError(t, err)
	assert.Empty(t, again.Actions)
	assert.Equal(t, result.Sessions, again.Sessions)
}

func TestResolveRescheduleLeavesInfeasibleConflicts(t *testing.T) {
	snapshot, sessions := oversizedGroupSnapshot()
	engine := newEngine(t, snapshot)

	result, err := engine.Resolve(context.Background(), sessions, nil, StrategyReschedule)
	require.NoError(t, err)

	assert.Empty(t, result.Actions)
	assert.Equal(t, []ConflictType{ConflictCapacityExceeded}, conflictTypes(result.Remaining))
}

func TestResolveSplitGroupsHalvesAttendance(t *testing.T) {
	snapshot, sessions := oversizedGroupSnapshot()
	engine := newEngine(t, snapshot)

	result, err := engine.Resolve(context.Background(), sessions, nil, StrategySplitGroups)
	require.NoError(t, err)

	assert.Empty(t, result.Remaining)
	require.Len(t, result.Actions, 1)
	assert.Contains(t, result.Actions[0], "split LAW100-g-1-1")
	require.Len(t, result.Sessions, 2)

	first, second := result.Sessions[0], result.Sessions[1]
	assert.Equal(t, "LAW100-g-1-1-A", first.ID)
	assert.Equal(t, "LAW100-g-1-1-B", second.ID)
	assert.Equal(t, "A", first.Subgroup)
	assert.Equal(t, "B", second.Subgroup)
	assert.Equal(t, 20, first.Attendance)
	assert.Equal(t, 20, second.Attendance)
	assert.False(t, first.Overlaps(second), "same lecturer teaches both halves")
}

// fullRoomsSnapshot has a group of 40, two 40-seat rooms, one 20-seat room and three slots.
func fullRoomsSnapshot() Snapshot {
	snapshot := Snapshot{
		Venues: []Venue{
			{ID: "v-1", Capacity: 40},
			{ID: "v-2", Capacity: 40},
			{ID: "v-3", Capacity: 20},
		},
		Slots: []TimeSlot{
			slot("1", 1, "08:00", "10:00"),
			slot("2", 1, "10:00", "12:00"),
			slot("3", 2, "08:00", "10:00"),
		},
	}
	for _, id := range []string{"g-1", "g-2", "g-3", "g-4", "g-5"} {
		snapshot.Groups = append(snapshot.Groups, Group{ID: id, StudentCount: 40})
	}
	return snapshot
}

func sessionAt(id, lecturer, group string, at TimeSlot, venue string) Session {
	return Session{
		ID: id, LecturerID: lecturer, GroupID: group,
		Day: at.Day, Start: at.Start, End: at.End, SlotID: at.ID, VenueID: venue,
		Mode: ModePhysical, Block: 1,
	}
}

func TestResolveSplitGroupsMovesWholeSessionWhenARoomIsFree(t *testing.T) {
	snapshot := fullRoomsSnapshot()
	engine := newEngine(t, snapshot)
	first := snapshot.Slots[0]
	sessions := []Session{
		sessionAt("ACC101-g-1-1", "l-1", "g-1", first, "v-1"),
		sessionAt("ACC102-g-1-1", "l-2", "g-1", first, "v-2"),
	}
	require.Equal(t, []ConflictType{ConflictGroupOverlap}, conflictTypes(engine.Detect(sessions)))

	result, err := engine.Resolve(context.Background(), sessions, nil, StrategySplitGroups)
	require.NoError(t, err)

	assert.Empty(t, result.Remaining)
	require.Len(t, result.Actions, 1)
	assert.Contains(t, result.Actions[0], "moved ACC102-g-1-1")
	require.Len(t, result.Sessions, 2)
	assert.Empty(t, result.Sessions[1].Subgroup)
	assert.Zero(t, result.Sessions[1].Attendance)
	assert.Equal(t, "2", result.Sessions[1].SlotID)
}

func TestResolveSplitGroupsHalvesOverlappingGroupWhenNoRoomIsFree(t *testing.T) {
	snapshot := fullRoomsSnapshot()
	engine := newEngine(t, snapshot)
	s1, s2, s3 := snapshot.Slots[0], snapshot.Slots[1], snapshot.Slots[2]
	sessions := []Session{
		sessionAt("ACC101-g-1-1", "l-1", "g-1", s1, "v-1"),
		sessionAt("ACC102-g-1-1", "l-2", "g-1", s1, "v-2"),
		sessionAt("ECO101-g-2-1", "l-3", "g-2", s2, "v-1"),
		sessionAt("ECO102-g-3-1", "l-4", "g-3", s2, "v-2"),
		sessionAt("FIN101-g-4-1", "l-5", "g-4", s3, "v-1"),
		sessionAt("FIN102-g-5-1", "l-6", "g-5", s3, "v-2"),
	}
	require.Equal(t, []ConflictType{ConflictGroupOverlap}, conflictTypes(engine.Detect(sessions)))

	result, err := engine.Resolve(context.Background(), sessions, nil, StrategySplitGroups)
	require.NoError(t, err)

	assert.Empty(t, result.Remaining)
	require.Len(t, result.Actions, 1)
	assert.Contains(t, result.Actions[0], "split ACC102-g-1-1 into")
	assert.Contains(t, result.Actions[0], "group_overlap")
	require.Len(t, result.Sessions, 7)

	first, second := result.Sessions[1], result.Sessions[6]
	assert.Equal(t, "ACC102-g-1-1-A", first.ID)
	assert.Equal(t, "ACC102-g-1-1-B", second.ID)
	assert.Equal(t, 20, first.Attendance)
	assert.Equal(t, 20, second.Attendance)
	assert.Equal(t, "v-3", first.VenueID)
	assert.Equal(t, "2", first.SlotID)
	assert.Equal(t, "3", second.SlotID)
}

func TestResolveHonoursCancellation(t *testing.T) {
	engine := newEngine(t, smallCSP())
	sessions := smallCSPSessions()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, strategy := range []Strategy{StrategyReschedule, StrategySplitGroups, StrategyAuto} {
		result, err := engine.Resolve(ctx, sessions, nil, strategy)
		require.NoError(t, err, strategy)
		assert.True(t, result.Cancelled, strategy)
		assert.Empty(t, result.Actions, strategy)
		assert.Equal(t, sessions, result.Sessions, strategy)
		assert.NotEmpty(t, result.Remaining, strategy)
	}
}

func TestResolveAutoFallsThroughToSplit(t *testing.T) {
	snapshot, sessions := oversizedGroupSnapshot()
	engine := newEngine(t, snapshot)

	result, err := engine.Resolve(context.Background(), sessions, nil, StrategyAuto)
	require.NoError(t, err)

	assert.Empty(t, result.Remaining)
	assert.Len(t, result.Sessions, 2)
}

func TestResolveUsesSuppliedConflicts(t *testing.T) {
	engine := newEngine(t, smallCSP())
	sessions := smallCSPSessions()

	result, err := engine.Resolve(context.Background(), sessions, []Conflict{}, StrategyAuto)
	require.NoError(t, err)
	assert.Empty(t, result.Actions)
	assert.NotEmpty(t, result.Remaining)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Split_Groups")
	require.NoError(t, err)
	assert.Equal(t, StrategySplitGroups, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyAuto, s)

	_, err = ParseStrategy("shuffle")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	engine := newEngine(t, smallCSP())
	_, err = engine.Resolve(context.Background(), smallCSPSessions(), nil, Strategy("shuffle"))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
