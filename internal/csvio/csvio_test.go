package csvio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/timetable"
)

func writeFixture(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
}

func snapshotFiles() map[string]string {
	return map[string]string{
		UnitsFile: "id,code,credit_hours,program_id,semester,group_ids\n" +
			"u1,BIT301,4,bit,1,g1;g2\n" +
			"u2,BIT302,3,bit,1,g1\n",
		LecturersFile: "id,code,unit_ids\n" +
			"# visiting staff are listed separately\n" +
			"l1,LEC1,u1|u2\n",
		GroupsFile: "id,name,class_id,student_count\n" +
			"g1,BIT Y1 A,c1,40\n" +
			"g2,BIT Y1 B,c1,35\n",
		VenuesFile: "id,name,capacity,location,online_capable\n" +
			"v1,Lab 1,45,Block A,false\n" +
			"v2,Virtual,500,,true\n",
		SlotsFile: "id,day,start,end\n" +
			"s1,MONDAY,08:00,10:00\n" +
			"s2,2,10:00,11:00\n",
		AssignmentsFile: "unit_id,lecturer_id\n" +
			"u1,l1\n",
	}
}

func TestLoadSnapshotDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, snapshotFiles())

	ds, err := Load(dir)
	require.NoError(t, err)

	require.Len(t, ds.Snapshot.Units, 2)
	assert.Equal(t, timetable.Unit{ID: "u1", Code: "BIT301", CreditHours: 4, ProgramID: "bit", Semester: 1, GroupIDs: []string{"g1", "g2"}}, ds.Snapshot.Units[0])
	require.Len(t, ds.Snapshot.Lecturers, 1)
	assert.Equal(t, []string{"u1", "u2"}, ds.Snapshot.Lecturers[0].UnitIDs)
	assert.Equal(t, 35, ds.Snapshot.Groups[1].StudentCount)
	assert.True(t, ds.Snapshot.Venues[1].OnlineCapable)
	assert.Equal(t, timetable.TimeSlot{ID: "s2", Day: 2, Start: timetable.MustClock("10:00"), End: timetable.MustClock("11:00")}, ds.Snapshot.Slots[1])
	assert.Equal(t, timetable.LecturerAssignments{"u1": "l1"}, ds.Assignments)
	assert.Nil(t, ds.Sessions)
}

func TestLoadWithoutOptionalFiles(t *testing.T) {
	dir := t.TempDir()
	files := snapshotFiles()
	delete(files, AssignmentsFile)
	writeFixture(t, dir, files)

	ds, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, ds.Assignments)
}

func TestLoadMissingRequiredFile(t *testing.T) {
	dir := t.TempDir()
	files := snapshotFiles()
	delete(files, VenuesFile)
	writeFixture(t, dir, files)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open venues.csv")
}

func TestLoadReportsBadSlotLine(t *testing.T) {
	dir := t.TempDir()
	files := snapshotFiles()
	files[SlotsFile] = "id,day,start,end\n" +
		"s1,MONDAY,08:00,10:00\n" +
		"s2,FUNDAY,10:00,11:00\n"
	writeFixture(t, dir, files)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slots.csv line 3")
}

func TestLoadRejectsReversedWindow(t *testing.T) {
	dir := t.TempDir()
	files := snapshotFiles()
	files[SlotsFile] = "id,day,start,end\ns1,MONDAY,10:00,08:00\n"
	writeFixture(t, dir, files)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ends before it starts")
}

func TestLoadReadsExistingSessions(t *testing.T) {
	dir := t.TempDir()
	files := snapshotFiles()
	files[SessionsFile] = "id,unit_id,lecturer_id,group_id,subgroup,attendance,day,start,end,slot_id,venue_id,mode,block\n" +
		"BIT301-g1-1,u1,l1,g1,,0,MONDAY,08:00,10:00,s1,v1,Physical,1\n" +
		"BIT302-g1-2,u2,l1,g1,A,20,tue,10:00,11:00,s2,v2,online,2\n"
	writeFixture(t, dir, files)

	ds, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, ds.Sessions, 2)
	assert.Equal(t, timetable.ModePhysical, ds.Sessions[0].Mode)
	assert.Equal(t, timetable.Weekday(2), ds.Sessions[1].Day)
	assert.Equal(t, timetable.ModeOnline, ds.Sessions[1].Mode)
	assert.Equal(t, "A", ds.Sessions[1].Subgroup)
	assert.Equal(t, 20, ds.Sessions[1].Attendance)
}

func TestReadSessionsRejectsUnknownMode(t *testing.T) {
	in := strings.NewReader("id,unit_id,lecturer_id,group_id,day,start,end,venue_id,mode,block\n" +
		"x,u1,l1,g1,MONDAY,08:00,10:00,v1,Hybrid,1\n")

	_, err := ReadSessions(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown delivery mode")
}

func TestWriteSessionsCanBeReadBack(t *testing.T) {
	sessions := []timetable.Session{{
		ID:         "BIT301-g1-1",
		UnitID:     "u1",
		LecturerID: "l1",
		GroupID:    "g1",
		Day:        1,
		Start:      timetable.MustClock("08:00"),
		End:        timetable.MustClock("10:00"),
		SlotID:     "s1",
		VenueID:    "v1",
		Mode:       timetable.ModePhysical,
		Block:      1,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteSessions(&buf, sessions, WithComma(';')))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id;unit_id;lecturer_id;group_id;subgroup;attendance;day;start;end;slot_id;venue_id;mode;block", lines[0])
	assert.Equal(t, "BIT301-g1-1;u1;l1;g1;;0;MONDAY;08:00;10:00;s1;v1;Physical;1", lines[1])

	decoded, err := ReadSessions(&buf, WithComma(';'))
	require.NoError(t, err)
	assert.Equal(t, sessions, decoded)
}

func TestWriteSessionsFileWritesHeaderForEmptySchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, WriteSessionsFile(path, nil))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "id,unit_id,"))
}
