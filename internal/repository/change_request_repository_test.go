package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/timetable-api/internal/models"
)

func changeRequestRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "school_id", "lesson_id", "requesting_teacher_id", "change_type", "proposed_day", "proposed_start_minute", "proposed_end_minute", "proposed_swap_teacher_id", "reason", "status", "admin_notes", "resolved_by", "resolved_at", "created_at", "updated_at"})
}

func TestChangeRequestRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	rows := changeRequestRows().
		AddRow("req-1", "school-1", "l1", "t1", "TIME_CHANGE", "TUESDAY", 660, 720, nil, "clash", "PENDING", nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, school_id, lesson_id, requesting_teacher_id, change_type, proposed_day, proposed_start_minute, proposed_end_minute, proposed_swap_teacher_id, reason, status, admin_notes, resolved_by, resolved_at, created_at, updated_at FROM schedule_change_requests WHERE school_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("school-1", "PENDING").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_change_requests WHERE school_id = $1 AND status = $2")).
		WithArgs("school-1", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	requests, total, err := repo.List(context.Background(), models.ChangeRequestFilter{SchoolID: "school-1", Status: models.ChangeRequestPending})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.ChangeRequestTimeChange, requests[0].ChangeType)
	require.NotNil(t, requests[0].ProposedStartTime)
	assert.Equal(t, models.ClockTime(660), *requests[0].ProposedStartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	mock.ExpectExec("INSERT INTO schedule_change_requests").
		WithArgs(sqlmock.AnyArg(), "school-1", "l1", "t1", "SWAP", nil, nil, nil, "t2", "cover needed", "PENDING", nil, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	swapTo := "t2"
	request := &models.ScheduleChangeRequest{
		SchoolID:            "school-1",
		LessonID:            "l1",
		RequestingTeacherID: "t1",
		ChangeType:          models.ChangeRequestSwap,
		ProposedSwapTeacher: &swapTo,
		Reason:              "cover needed",
	}
	err := repo.Create(context.Background(), request)
	require.NoError(t, err)
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, models.ChangeRequestPending, request.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestRepositoryResolve(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_change_requests SET status = $1, resolved_by = $2, resolved_at = $3, admin_notes = $4, updated_at = $5 WHERE id = $6 AND school_id = $7 AND status = $8")).
		WithArgs("APPROVED", "admin-1", sqlmock.AnyArg(), nil, sqlmock.AnyArg(), "req-1", "school-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Resolve(context.Background(), ResolveChangeRequestParams{
		ID:         "req-1",
		SchoolID:   "school-1",
		Status:     models.ChangeRequestApproved,
		ResolvedBy: "admin-1",
		ResolvedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A request already resolved by a concurrent admin matches zero rows; the
// caller sees sql.ErrNoRows rather than a silent double transition.
func TestChangeRequestRepositoryResolveLostRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	mock.ExpectExec("UPDATE schedule_change_requests SET status").
		WithArgs("REJECTED", "admin-1", sqlmock.AnyArg(), "too late", sqlmock.AnyArg(), "req-1", "school-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	notes := "too late"
	err := repo.Resolve(context.Background(), ResolveChangeRequestParams{
		ID:         "req-1",
		SchoolID:   "school-1",
		Status:     models.ChangeRequestRejected,
		ResolvedBy: "admin-1",
		ResolvedAt: time.Now().UTC(),
		AdminNotes: &notes,
	})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
