package service

import (
	"sync"
	"time"

	"github.com/noah-isme/timetable-engine/internal/timetable"
)

// proposal is an unsaved schedule held between API calls.
type proposal struct {
	ID           string
	Scope        timetable.Scope
	Snapshot     timetable.Snapshot
	Sessions     []timetable.Session
	Unassignable []timetable.UnassignableBlock
	Report       timetable.Report
	Algorithm    string
	Actions      []string
	Revision     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *proposal) clone() *proposal {
	c := *p
	c.Sessions = timetable.CloneSessions(p.Sessions)
	c.Unassignable = append([]timetable.UnassignableBlock(nil), p.Unassignable...)
	c.Actions = append([]string(nil), p.Actions...)
	return &c
}

// proposalStore keeps proposals in memory; an entry expires ttl after its last update.
type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*proposal
	now   func() time.Time
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]*proposal),
		now:   time.Now,
	}
}

// Save stores p, bumping its revision and timestamps.
func (s *proposalStore) Save(p *proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(p)
}

// SaveIfRevision stores p only when the stored copy still has the given revision.
func (s *proposalStore) SaveIfRevision(p *proposal, revision int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[p.ID]
	if !ok || current.Revision != revision || s.expired(current) {
		return false
	}
	s.saveLocked(p)
	return true
}

func (s *proposalStore) saveLocked(p *proposal) {
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if current, ok := s.items[p.ID]; ok && current.Revision >= p.Revision {
		p.Revision = current.Revision
	}
	p.Revision++
	s.items[p.ID] = p.clone()
	s.pruneLocked()
}

// Get returns an independent copy of the proposal.
func (s *proposalStore) Get(id string) (*proposal, bool) {
	s.mu.RLock()
	p, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.expired(p) {
		s.Delete(id)
		return nil, false
	}
	return p.clone(), true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *proposalStore) expired(p *proposal) bool {
	return s.now().Sub(p.UpdatedAt) > s.ttl
}

func (s *proposalStore) pruneLocked() {
	for id, p := range s.items {
		if s.expired(p) {
			delete(s.items, id)
		}
	}
}
