package csvio

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/noah-isme/timetable-engine/internal/timetable"
)

type unitRecord struct {
	ID          string `csv:"id"`
	Code        string `csv:"code"`
	CreditHours int    `csv:"credit_hours"`
	ProgramID   string `csv:"program_id"`
	Semester    int    `csv:"semester"`
	GroupIDs    string `csv:"group_ids"`
}

type lecturerRecord struct {
	ID      string `csv:"id"`
	Code    string `csv:"code"`
	UnitIDs string `csv:"unit_ids"`
}

type groupRecord struct {
	ID           string `csv:"id"`
	Name         string `csv:"name"`
	ClassID      string `csv:"class_id"`
	StudentCount int    `csv:"student_count"`
}

type venueRecord struct {
	ID            string `csv:"id"`
	Name          string `csv:"name"`
	Capacity      int    `csv:"capacity"`
	Location      string `csv:"location"`
	OnlineCapable bool   `csv:"online_capable"`
}

type slotRecord struct {
	ID    string `csv:"id"`
	Day   string `csv:"day"`
	Start string `csv:"start"`
	End   string `csv:"end"`
}

type assignmentRecord struct {
	UnitID     string `csv:"unit_id"`
	LecturerID string `csv:"lecturer_id"`
}

type sessionRecord struct {
	ID         string `csv:"id"`
	UnitID     string `csv:"unit_id"`
	LecturerID string `csv:"lecturer_id"`
	GroupID    string `csv:"group_id"`
	Subgroup   string `csv:"subgroup"`
	Attendance int    `csv:"attendance"`
	Day        string `csv:"day"`
	Start      string `csv:"start"`
	End        string `csv:"end"`
	SlotID     string `csv:"slot_id"`
	VenueID    string `csv:"venue_id"`
	Mode       string `csv:"mode"`
	Block      int    `csv:"block"`
}

// splitList splits a multi-valued cell. Values are separated by ';' or '|'.
func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == '|' })
	return lo.FilterMap(parts, func(part string, _ int) (string, bool) {
		part = strings.TrimSpace(part)
		return part, part != ""
	})
}

func (r unitRecord) toUnit() timetable.Unit {
	return timetable.Unit{
		ID:          strings.TrimSpace(r.ID),
		Code:        strings.TrimSpace(r.Code),
		CreditHours: r.CreditHours,
		ProgramID:   strings.TrimSpace(r.ProgramID),
		Semester:    r.Semester,
		GroupIDs:    splitList(r.GroupIDs),
	}
}

func (r lecturerRecord) toLecturer() timetable.Lecturer {
	return timetable.Lecturer{
		ID:      strings.TrimSpace(r.ID),
		Code:    strings.TrimSpace(r.Code),
		UnitIDs: splitList(r.UnitIDs),
	}
}

func (r groupRecord) toGroup() timetable.Group {
	return timetable.Group{
		ID:           strings.TrimSpace(r.ID),
		Name:         strings.TrimSpace(r.Name),
		ClassID:      strings.TrimSpace(r.ClassID),
		StudentCount: r.StudentCount,
	}
}

func (r venueRecord) toVenue() timetable.Venue {
	return timetable.Venue{
		ID:            strings.TrimSpace(r.ID),
		Name:          strings.TrimSpace(r.Name),
		Capacity:      r.Capacity,
		Location:      strings.TrimSpace(r.Location),
		OnlineCapable: r.OnlineCapable,
	}
}

func (r slotRecord) toSlot() (timetable.TimeSlot, error) {
	day, err := timetable.ParseWeekday(r.Day)
	if err != nil {
		return timetable.TimeSlot{}, err
	}
	start, end, err := parseWindow(r.Start, r.End)
	if err != nil {
		return timetable.TimeSlot{}, err
	}
	return timetable.TimeSlot{ID: strings.TrimSpace(r.ID), Day: day, Start: start, End: end}, nil
}

func (r sessionRecord) toSession() (timetable.Session, error) {
	day, err := timetable.ParseWeekday(r.Day)
	if err != nil {
		return timetable.Session{}, err
	}
	start, end, err := parseWindow(r.Start, r.End)
	if err != nil {
		return timetable.Session{}, err
	}
	mode := timetable.DeliveryMode(strings.TrimSpace(r.Mode))
	switch {
	case strings.EqualFold(string(mode), string(timetable.ModeOnline)):
		mode = timetable.ModeOnline
	case mode == "" || strings.EqualFold(string(mode), string(timetable.ModePhysical)):
		mode = timetable.ModePhysical
	default:
		return timetable.Session{}, fmt.Errorf("unknown delivery mode %q", r.Mode)
	}
	return timetable.Session{
		ID:         strings.TrimSpace(r.ID),
		UnitID:     strings.TrimSpace(r.UnitID),
		LecturerID: strings.TrimSpace(r.LecturerID),
		GroupID:    strings.TrimSpace(r.GroupID),
		Subgroup:   strings.TrimSpace(r.Subgroup),
		Attendance: r.Attendance,
		Day:        day,
		Start:      start,
		End:        end,
		SlotID:     strings.TrimSpace(r.SlotID),
		VenueID:    strings.TrimSpace(r.VenueID),
		Mode:       mode,
		Block:      r.Block,
	}, nil
}

func newSessionRecord(s timetable.Session) sessionRecord {
	return sessionRecord{
		ID:         s.ID,
		UnitID:     s.UnitID,
		LecturerID: s.LecturerID,
		GroupID:    s.GroupID,
		Subgroup:   s.Subgroup,
		Attendance: s.Attendance,
		Day:        s.Day.String(),
		Start:      s.Start.String(),
		End:        s.End.String(),
		SlotID:     s.SlotID,
		VenueID:    s.VenueID,
		Mode:       string(s.Mode),
		Block:      s.Block,
	}
}

func parseWindow(rawStart, rawEnd string) (timetable.Clock, timetable.Clock, error) {
	start, err := timetable.ParseClock(rawStart)
	if err != nil {
		return 0, 0, err
	}
	end, err := timetable.ParseClock(rawEnd)
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("window %s-%s ends before it starts", start, end)
	}
	return start, end, nil
}
