package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// TimetableSessionRepository manages the session rows of stored timetables.
type TimetableSessionRepository struct {
	db *sqlx.DB
}

// NewTimetableSessionRepository builds repository.
func NewTimetableSessionRepository(db *sqlx.DB) *TimetableSessionRepository {
	return &TimetableSessionRepository{db: db}
}

func (r *TimetableSessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch writes sessions for a timetable. Session keys are unique per timetable.
func (r *TimetableSessionRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.TimetableSession) error {
	if len(sessions) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_sessions (id, timetable_id, session_key, unit_id, lecturer_id, group_id, subgroup, attendance, day_of_week, start_time, end_time, slot_id, venue_id, mode, block, created_at)
VALUES (:id, :timetable_id, :session_key, :unit_id, :lecturer_id, :group_id, :subgroup, :attendance, :day_of_week, :start_time, :end_time, :slot_id, :venue_id, :mode, :block, :created_at)
ON CONFLICT (timetable_id, session_key) DO UPDATE
SET day_of_week = EXCLUDED.day_of_week,
    start_time = EXCLUDED.start_time,
    end_time = EXCLUDED.end_time,
    slot_id = EXCLUDED.slot_id,
    venue_id = EXCLUDED.venue_id`

	for i := range sessions {
		session := &sessions[i]
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		if session.CreatedAt.IsZero() {
			session.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, session); err != nil {
			return fmt.Errorf("insert timetable session %s: %w", session.SessionKey, err)
		}
	}
	return nil
}

// ListByTimetable returns sessions ordered by day, start time and key.
func (r *TimetableSessionRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSession, error) {
	const query = `SELECT id, timetable_id, session_key, unit_id, lecturer_id, group_id, subgroup, attendance, day_of_week, start_time, end_time, slot_id, venue_id, mode, block, created_at
FROM timetable_sessions WHERE timetable_id = $1 ORDER BY day_of_week ASC, start_time ASC, session_key ASC`
	var sessions []models.TimetableSession
	if err := r.db.SelectContext(ctx, &sessions, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable sessions: %w", err)
	}
	return sessions, nil
}
