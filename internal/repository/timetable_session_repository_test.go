package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/models"
)

func TestTimetableSessionRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSessionRepository(db)

	sessions := []models.TimetableSession{
		{TimetableID: "tt-1", SessionKey: "BIT301-g-1-1", UnitID: "u-1", LecturerID: "l-1", GroupID: "g-1", DayOfWeek: 1, StartTime: "08:00", EndTime: "10:00", VenueID: "v-1", Mode: "Physical", Block: 1},
		{TimetableID: "tt-1", SessionKey: "BIT301-g-1-2", UnitID: "u-1", LecturerID: "l-1", GroupID: "g-1", DayOfWeek: 2, StartTime: "08:00", EndTime: "09:00", VenueID: "zoom", Mode: "Online", Block: 2},
	}
	for range sessions {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_sessions")).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	require.NoError(t, repo.InsertBatch(context.Background(), nil, sessions))
	for _, s := range sessions {
		assert.NotEmpty(t, s.ID)
		assert.False(t, s.CreatedAt.IsZero())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSessionRepositoryInsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSessionRepository(db)

	require.NoError(t, repo.InsertBatch(context.Background(), nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSessionRepositoryListByTimetable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSessionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "timetable_id", "session_key", "unit_id", "lecturer_id", "group_id", "subgroup", "attendance", "day_of_week", "start_time", "end_time", "slot_id", "venue_id", "mode", "block", "created_at"}).
		AddRow("s-1", "tt-1", "BIT301-g-1-1", "u-1", "l-1", "g-1", nil, 0, 1, "08:00", "10:00", "1", "v-1", "Physical", 1, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_sessions WHERE timetable_id = $1 ORDER BY day_of_week ASC, start_time ASC, session_key ASC")).
		WithArgs("tt-1").
		WillReturnRows(rows)

	list, err := repo.ListByTimetable(context.Background(), "tt-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Subgroup)
	require.NotNil(t, list[0].SlotID)
	assert.Equal(t, "1", *list[0].SlotID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
