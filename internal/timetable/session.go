package timetable

import (
	"fmt"
	"strings"
)

// DeliveryMode says whether a session happens in a room or online.
type DeliveryMode string

const (
	ModePhysical DeliveryMode = "Physical"
	ModeOnline   DeliveryMode = "Online"
)

// Session is one scheduled occurrence of a unit for a group.
type Session struct {
	ID         string       `json:"id"`
	UnitID     string       `json:"unitId"`
	LecturerID string       `json:"lecturerId"`
	GroupID    string       `json:"groupId"`
	Subgroup   string       `json:"subgroup,omitempty"`
	Attendance int          `json:"attendance,omitempty"`
	Day        Weekday      `json:"day"`
	Start      Clock        `json:"start"`
	End        Clock        `json:"end"`
	SlotID     string       `json:"slotId,omitempty"`
	VenueID    string       `json:"venueId"`
	Mode       DeliveryMode `json:"mode"`
	Block      int          `json:"block"`
}

// Minutes returns the session length.
func (s Session) Minutes() int {
	return int(s.End - s.Start)
}

// Overlaps reports whether both sessions run at the same time on the same day.
func (s Session) Overlaps(other Session) bool {
	return s.Day == other.Day && s.Start < other.End && other.Start < s.End
}

// SharesGroup reports whether the sessions have students in common. Sibling subgroups
// produced by a split are disjoint; a whole-group session overlaps every subgroup.
func (s Session) SharesGroup(other Session) bool {
	if s.GroupID == "" || s.GroupID != other.GroupID {
		return false
	}
	return strings.HasPrefix(s.Subgroup, other.Subgroup) || strings.HasPrefix(other.Subgroup, s.Subgroup)
}

func (s Session) window() string {
	return fmt.Sprintf("%s %s-%s", s.Day, s.Start, s.End)
}

func (s Session) String() string {
	venue := s.VenueID
	if venue == "" {
		venue = "-"
	}
	return fmt.Sprintf("%s (%s @ %s)", s.ID, s.window(), venue)
}

// placement is a candidate (slot, venue) pair for a session.
type placement struct {
	slot  TimeSlot
	venue Venue
}

// at returns a copy of the session moved to the placement.
func (s Session) at(p placement) Session {
	s.Day = p.slot.Day
	s.Start = p.slot.Start
	s.End = p.slot.End
	s.SlotID = p.slot.ID
	s.VenueID = p.venue.ID
	return s
}

// sitsAt reports whether the session already occupies the placement.
func (s Session) sitsAt(p placement) bool {
	return s.Day == p.slot.Day && s.Start == p.slot.Start && s.End == p.slot.End && s.VenueID == p.venue.ID
}

// CloneSessions returns an independent copy of the slice.
func CloneSessions(sessions []Session) []Session {
	if sessions == nil {
		return nil
	}
	out := make([]Session, len(sessions))
	copy(out, sessions)
	return out
}
