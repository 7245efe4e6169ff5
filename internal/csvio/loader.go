// Package csvio reads scheduling snapshots from a directory of CSV files and writes
// schedules back out.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/timetable-engine/internal/timetable"
)

// File names expected inside a snapshot directory.
const (
	UnitsFile       = "units.csv"
	LecturersFile   = "lecturers.csv"
	GroupsFile      = "groups.csv"
	VenuesFile      = "venues.csv"
	SlotsFile       = "slots.csv"
	AssignmentsFile = "assignments.csv"
	SessionsFile    = "sessions.csv"
)

// Dataset is everything loaded from a snapshot directory.
type Dataset struct {
	Snapshot    timetable.Snapshot
	Assignments timetable.LecturerAssignments
	// Sessions is the existing schedule from sessions.csv; nil when the file is absent.
	Sessions []timetable.Session
}

// Option customises the CSV dialect.
type Option func(*dialect)

type dialect struct {
	comma rune
}

// WithComma sets the field delimiter. The default is ','.
func WithComma(r rune) Option {
	return func(d *dialect) {
		d.comma = r
	}
}

func newDialect(opts []Option) dialect {
	d := dialect{comma: ','}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func (d dialect) reader(in io.Reader) gocsv.CSVReader {
	r := csv.NewReader(in)
	r.Comma = d.comma
	r.Comment = '#'
	r.TrimLeadingSpace = true
	return r
}

// Load reads a snapshot directory. assignments.csv and sessions.csv are optional; the
// other files must exist.
func Load(dir string, opts ...Option) (*Dataset, error) {
	d := newDialect(opts)

	var units []unitRecord
	if err := d.decodeFile(filepath.Join(dir, UnitsFile), &units, true); err != nil {
		return nil, err
	}
	var lecturers []lecturerRecord
	if err := d.decodeFile(filepath.Join(dir, LecturersFile), &lecturers, true); err != nil {
		return nil, err
	}
	var groups []groupRecord
	if err := d.decodeFile(filepath.Join(dir, GroupsFile), &groups, true); err != nil {
		return nil, err
	}
	var venues []venueRecord
	if err := d.decodeFile(filepath.Join(dir, VenuesFile), &venues, true); err != nil {
		return nil, err
	}
	var slots []slotRecord
	if err := d.decodeFile(filepath.Join(dir, SlotsFile), &slots, true); err != nil {
		return nil, err
	}
	var assignments []assignmentRecord
	if err := d.decodeFile(filepath.Join(dir, AssignmentsFile), &assignments, false); err != nil {
		return nil, err
	}

	ds := &Dataset{Assignments: make(timetable.LecturerAssignments, len(assignments))}
	for _, r := range units {
		ds.Snapshot.Units = append(ds.Snapshot.Units, r.toUnit())
	}
	for _, r := range lecturers {
		ds.Snapshot.Lecturers = append(ds.Snapshot.Lecturers, r.toLecturer())
	}
	for _, r := range groups {
		ds.Snapshot.Groups = append(ds.Snapshot.Groups, r.toGroup())
	}
	for _, r := range venues {
		ds.Snapshot.Venues = append(ds.Snapshot.Venues, r.toVenue())
	}
	for i, r := range slots {
		slot, err := r.toSlot()
		if err != nil {
			return nil, rowError(SlotsFile, i, err)
		}
		ds.Snapshot.Slots = append(ds.Snapshot.Slots, slot)
	}
	for i, r := range assignments {
		if r.UnitID == "" || r.LecturerID == "" {
			return nil, rowError(AssignmentsFile, i, errors.New("unit_id and lecturer_id are required"))
		}
		ds.Assignments[r.UnitID] = r.LecturerID
	}

	path := filepath.Join(dir, SessionsFile)
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ds, nil
	case err != nil:
		return nil, fmt.Errorf("open %s: %w", SessionsFile, err)
	}
	defer f.Close()
	sessions, err := ReadSessions(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SessionsFile, err)
	}
	ds.Sessions = sessions
	return ds, nil
}

// ReadSessions decodes a sessions CSV.
func ReadSessions(in io.Reader, opts ...Option) ([]timetable.Session, error) {
	d := newDialect(opts)
	var records []sessionRecord
	if err := d.decode(in, &records); err != nil {
		return nil, err
	}
	sessions := make([]timetable.Session, 0, len(records))
	for i, r := range records {
		s, err := r.toSession()
		if err != nil {
			return nil, rowError(SessionsFile, i, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (d dialect) decodeFile(path string, out interface{}, required bool) error {
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	if err := d.decode(f, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (d dialect) decode(in io.Reader, out interface{}) error {
	if err := gocsv.UnmarshalCSV(d.reader(in), out); err != nil && !errors.Is(err, gocsv.ErrEmptyCSVFile) {
		return err
	}
	return nil
}

// rowError reports a data row by its line number, counting the header as line 1.
func rowError(file string, index int, err error) error {
	return fmt.Errorf("%s line %d: %w", file, index+2, err)
}
