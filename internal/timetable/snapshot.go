package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a wall-clock time expressed in minutes after midnight.
type Clock int

// ParseClock parses "HH:MM" (or "H:MM") into a Clock. A trailing ":00" seconds
// component, as rendered by SQL TIME columns, is accepted.
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) == 3 && parts[2] == "00" {
		parts = parts[:2]
	}
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 24 {
		return 0, fmt.Errorf("invalid clock hours %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid clock minutes %q", raw)
	}
	if hours == 24 && minutes != 0 {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	return Clock(hours*60 + minutes), nil
}

// MustClock is ParseClock for literals; it panics on malformed input.
func MustClock(raw string) Clock {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Weekday numbers days 1 (Monday) through 7 (Sunday).
type Weekday int

var weekdayNames = map[Weekday]string{
	1: "MONDAY",
	2: "TUESDAY",
	3: "WEDNESDAY",
	4: "THURSDAY",
	5: "FRIDAY",
	6: "SATURDAY",
	7: "SUNDAY",
}

// Valid reports whether the day is in 1..7.
func (d Weekday) Valid() bool {
	return d >= 1 && d <= 7
}

func (d Weekday) String() string {
	if name, ok := weekdayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DAY(%d)", int(d))
}

// ParseWeekday accepts either a day number or an English day name.
func ParseWeekday(raw string) (Weekday, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(raw); err == nil {
		d := Weekday(n)
		if !d.Valid() {
			return 0, fmt.Errorf("day %d out of range", n)
		}
		return d, nil
	}
	for day, name := range weekdayNames {
		if name == raw || name[:3] == raw {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", raw)
}

// Unit is a course unit that must be taught to its enrolled groups.
type Unit struct {
	ID          string   `json:"id"`
	Code        string   `json:"code"`
	CreditHours int      `json:"creditHours"`
	ProgramID   string   `json:"programId"`
	Semester    int      `json:"semester"`
	GroupIDs    []string `json:"groupIds"`
}

// Lecturer teaches units. UnitIDs lists the units they are qualified for.
type Lecturer struct {
	ID      string   `json:"id"`
	Code    string   `json:"code"`
	UnitIDs []string `json:"unitIds"`
}

// Group is a cohort of students attending sessions together.
type Group struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ClassID      string `json:"classId"`
	StudentCount int    `json:"studentCount"`
}

// Venue hosts sessions. Virtual rooms have OnlineCapable set.
type Venue struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Capacity      int    `json:"capacity"`
	Location      string `json:"location"`
	OnlineCapable bool   `json:"onlineCapable"`
}

// TimeSlot is one cataloged teaching window.
type TimeSlot struct {
	ID    string  `json:"id"`
	Day   Weekday `json:"day"`
	Start Clock   `json:"start"`
	End   Clock   `json:"end"`
}

// Minutes returns the slot length.
func (t TimeSlot) Minutes() int {
	return int(t.End - t.Start)
}

func (t TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", t.Day, t.Start, t.End)
}

// Snapshot is the read-only domain view the engine schedules against.
type Snapshot struct {
	Units     []Unit     `json:"units"`
	Lecturers []Lecturer `json:"lecturers"`
	Groups    []Group    `json:"groups"`
	Venues    []Venue    `json:"venues"`
	Slots     []TimeSlot `json:"slots"`
}

// Scope selects the units and groups a generation run covers. Empty fields match everything.
type Scope struct {
	Semester  int    `json:"semester"`
	ProgramID string `json:"programId"`
	ClassID   string `json:"classId"`
	GroupID   string `json:"groupId,omitempty"`
}

// LecturerAssignments maps unit ID to the lecturer ID teaching it.
type LecturerAssignments map[string]string

// lessID orders identifiers numerically when both are integers and lexically otherwise.
func lessID(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		if ai != bi {
			return ai < bi
		}
		return a < b
	}
	return a < b
}
