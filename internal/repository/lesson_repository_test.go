package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func lessonRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "school_id", "subject_id", "class_id", "teacher_id", "room_id", "day_of_week", "start_minute", "end_minute", "created_at", "updated_at"})
}

func TestLessonRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	rows := lessonRows().
		AddRow("l1", "school-1", "s1", "c1", "t1", nil, "MONDAY", 540, 600, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, school_id, subject_id, class_id, teacher_id, room_id, day_of_week, start_minute, end_minute, created_at, updated_at FROM lessons WHERE school_id = $1 AND teacher_id = $2 ORDER BY day_of_week ASC, start_minute ASC LIMIT 50 OFFSET 0")).
		WithArgs("school-1", "t1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lessons WHERE school_id = $1 AND teacher_id = $2")).
		WithArgs("school-1", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	lessons, total, err := repo.List(context.Background(), models.LessonFilter{SchoolID: "school-1", TeacherID: "t1"})
	require.NoError(t, err)
	assert.Len(t, lessons, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.Monday, lessons[0].DayOfWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, school_id, subject_id, class_id, teacher_id, room_id, day_of_week, start_minute, end_minute, created_at, updated_at FROM lessons WHERE id = $1 AND school_id = $2")).
		WithArgs("l1", "school-1").
		WillReturnRows(lessonRows().AddRow("l1", "school-1", "s1", "c1", "t1", "r1", "FRIDAY", 480, 525, time.Now(), time.Now()))

	lesson, err := repo.FindByID(context.Background(), "l1", "school-1")
	require.NoError(t, err)
	assert.Equal(t, models.Friday, lesson.DayOfWeek)
	require.NotNil(t, lesson.RoomID)
	assert.Equal(t, "r1", *lesson.RoomID)
	assert.Equal(t, models.ClockTime(480), lesson.StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryFindByIDWrongSchool(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery("SELECT .* FROM lessons WHERE id").
		WithArgs("l1", "school-2").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "l1", "school-2")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListByDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, school_id, subject_id, class_id, teacher_id, room_id, day_of_week, start_minute, end_minute, created_at, updated_at FROM lessons WHERE school_id = $1 AND day_of_week = $2 ORDER BY start_minute ASC")).
		WithArgs("school-1", "MONDAY").
		WillReturnRows(lessonRows().
			AddRow("l1", "school-1", "s1", "c1", "t1", nil, "MONDAY", 540, 600, time.Now(), time.Now()).
			AddRow("l2", "school-1", "s1", "c2", "t2", nil, "MONDAY", 600, 660, time.Now(), time.Now()))

	lessons, err := repo.ListByDay(context.Background(), "school-1", models.Monday)
	require.NoError(t, err)
	assert.Len(t, lessons, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec("INSERT INTO lessons").
		WithArgs(sqlmock.AnyArg(), "school-1", "s1", "c1", "t1", nil, "MONDAY", int64(540), int64(600), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	lesson := &models.Lesson{
		SchoolID:  "school-1",
		SubjectID: "s1",
		ClassID:   "c1",
		TeacherID: "t1",
		DayOfWeek: models.Monday,
		StartTime: 540,
		EndTime:   600,
	}
	err := repo.Create(context.Background(), lesson)
	require.NoError(t, err)
	assert.NotEmpty(t, lesson.ID)
	assert.False(t, lesson.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM lessons WHERE id = $1 AND school_id = $2")).
		WithArgs("l1", "school-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "l1", "school-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
