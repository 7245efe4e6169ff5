package timetable

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Block is one required teaching block derived from a unit's credit hours.
type Block struct {
	Mode    DeliveryMode `json:"mode"`
	Minutes int          `json:"minutes"`
}

// BlocksFor applies the credit-hour distribution policy.
func BlocksFor(creditHours int) ([]Block, error) {
	switch creditHours {
	case 2:
		return []Block{{Mode: ModePhysical, Minutes: 120}}, nil
	case 3:
		return []Block{{Mode: ModePhysical, Minutes: 120}, {Mode: ModeOnline, Minutes: 60}}, nil
	case 4:
		return []Block{{Mode: ModePhysical, Minutes: 120}, {Mode: ModePhysical, Minutes: 120}}, nil
	default:
		return nil, invalidf("credit hours must be 2, 3 or 4, got %d", creditHours)
	}
}

// UnassignableBlock is a required block the generator could not place.
type UnassignableBlock struct {
	UnitID     string       `json:"unitId"`
	UnitCode   string       `json:"unitCode"`
	GroupID    string       `json:"groupId"`
	LecturerID string       `json:"lecturerId,omitempty"`
	Block      int          `json:"block"`
	Mode       DeliveryMode `json:"mode"`
	Minutes    int          `json:"minutes"`
	Reason     string       `json:"reason"`
}

// GenerateResult is the output of a generation run.
type GenerateResult struct {
	Sessions     []Session           `json:"sessions"`
	Unassignable []UnassignableBlock `json:"unassignable"`
	Report       Report              `json:"report"`
	// Cancelled marks a run stopped by its context; Sessions holds what was placed so far.
	Cancelled bool `json:"cancelled,omitempty"`
}

// Generate builds a schedule from scratch for the units in scope. Units are visited in
// ascending code order, groups in ascending ID order, and each block takes the first
// feasible placement, so the same input always yields the same schedule.
func (e *Engine) Generate(ctx context.Context, scope Scope, assignments LecturerAssignments) (GenerateResult, error) {
	result := GenerateResult{
		Sessions:     make([]Session, 0),
		Unassignable: make([]UnassignableBlock, 0),
	}
	b := newBoard(nil)

	for _, unit := range e.unitsInScope(scope) {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		blocks, err := BlocksFor(unit.CreditHours)
		if err != nil {
			return GenerateResult{}, err
		}
		lecturerID, reason := e.lecturerFor(unit, assignments)
		for _, groupID := range e.groupsInScope(unit, scope) {
			for k, block := range blocks {
				draft := Session{
					ID:         fmt.Sprintf("%s-%s-%d", unit.Code, groupID, k+1),
					UnitID:     unit.ID,
					LecturerID: lecturerID,
					GroupID:    groupID,
					Mode:       block.Mode,
					Block:      k + 1,
					End:        Clock(block.Minutes),
				}
				missing := UnassignableBlock{
					UnitID:     unit.ID,
					UnitCode:   unit.Code,
					GroupID:    groupID,
					LecturerID: lecturerID,
					Block:      k + 1,
					Mode:       block.Mode,
					Minutes:    block.Minutes,
				}
				if reason != "" {
					missing.Reason = reason
					result.Unassignable = append(result.Unassignable, missing)
					continue
				}
				if _, ok := e.groups[groupID]; !ok {
					missing.Reason = fmt.Sprintf("group %s is not in the snapshot", groupID)
					result.Unassignable = append(result.Unassignable, missing)
					continue
				}
				placed := false
				for _, p := range e.candidates(draft) {
					s := draft.at(p)
					if b.fits(s, -1) {
						b.add(s)
						placed = true
						break
					}
				}
				if !placed {
					missing.Reason = e.explainUnplaced(draft)
					result.Unassignable = append(result.Unassignable, missing)
				}
			}
		}
	}

	result.Sessions = b.sessions
	result.Report = e.Evaluate(result.Sessions)
	return result, nil
}

func (e *Engine) unitsInScope(scope Scope) []Unit {
	units := lo.Filter(e.snapshot.Units, func(u Unit, _ int) bool {
		if scope.ProgramID != "" && u.ProgramID != scope.ProgramID {
			return false
		}
		if scope.Semester != 0 && u.Semester != scope.Semester {
			return false
		}
		return true
	})
	sort.SliceStable(units, func(i, j int) bool {
		if units[i].Code != units[j].Code {
			return units[i].Code < units[j].Code
		}
		return lessID(units[i].ID, units[j].ID)
	})
	return units
}

func (e *Engine) groupsInScope(unit Unit, scope Scope) []string {
	ids := lo.Uniq(lo.Filter(unit.GroupIDs, func(id string, _ int) bool {
		if scope.GroupID != "" && id != scope.GroupID {
			return false
		}
		if scope.ClassID != "" {
			g, ok := e.groups[id]
			if ok && g.ClassID != scope.ClassID {
				return false
			}
		}
		return true
	}))
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	return ids
}

// lecturerFor resolves the lecturer of a unit from the assignment map, falling back to the
// lowest-ID lecturer qualified for the unit. A non-empty reason means none is usable.
func (e *Engine) lecturerFor(unit Unit, assignments LecturerAssignments) (string, string) {
	if id, ok := assignments[unit.ID]; ok && id != "" {
		lecturer, known := e.lecturers[id]
		if !known {
			return id, fmt.Sprintf("lecturer %s is not in the snapshot", id)
		}
		if len(lecturer.UnitIDs) > 0 && !lo.Contains(lecturer.UnitIDs, unit.ID) {
			return id, fmt.Sprintf("lecturer %s is not qualified for unit %s", id, unit.Code)
		}
		return id, ""
	}
	qualified := lo.Filter(e.snapshot.Lecturers, func(l Lecturer, _ int) bool {
		return lo.Contains(l.UnitIDs, unit.ID)
	})
	if len(qualified) == 0 {
		return "", fmt.Sprintf("no lecturer assigned to unit %s", unit.Code)
	}
	sort.Slice(qualified, func(i, j int) bool { return lessID(qualified[i].ID, qualified[j].ID) })
	return qualified[0].ID, ""
}

func (e *Engine) explainUnplaced(draft Session) string {
	suitable := 0
	for _, v := range e.venues {
		if e.suitable(draft, v) {
			suitable++
		}
	}
	if suitable == 0 {
		if draft.Mode == ModeOnline {
			return "no online-capable venue in the catalog"
		}
		return fmt.Sprintf("no venue can seat %d students", e.headcount(draft))
	}
	hasLength := lo.ContainsBy(e.slots, func(s TimeSlot) bool { return s.Minutes() == draft.Minutes() })
	if !hasLength {
		return fmt.Sprintf("no %d-minute time slot in the catalog", draft.Minutes())
	}
	return "every suitable slot/venue pair is already taken by the lecturer, venue or group"
}
