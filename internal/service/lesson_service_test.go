package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type mockLessonRepo struct {
	items   map[string]*models.Lesson
	created int
	updated int
	deleted []string
	listErr error
}

func (m *mockLessonRepo) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []models.Lesson
	for _, l := range m.items {
		if l.SchoolID != filter.SchoolID {
			continue
		}
		if filter.TeacherID != "" && l.TeacherID != filter.TeacherID {
			continue
		}
		if filter.ClassID != "" && l.ClassID != filter.ClassID {
			continue
		}
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id, schoolID string) (*models.Lesson, error) {
	if l, ok := m.items[id]; ok && l.SchoolID == schoolID {
		cp := *l
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLessonRepo) ListByDay(ctx context.Context, schoolID string, day models.DayOfWeek) ([]models.Lesson, error) {
	var out []models.Lesson
	for _, l := range m.items {
		if l.SchoolID == schoolID && l.DayOfWeek == day {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockLessonRepo) Create(ctx context.Context, lesson *models.Lesson) error {
	if m.items == nil {
		m.items = make(map[string]*models.Lesson)
	}
	if lesson.ID == "" {
		lesson.ID = fmt.Sprintf("lesson-%d", len(m.items)+1)
	}
	m.created++
	cp := *lesson
	m.items[lesson.ID] = &cp
	return nil
}

func (m *mockLessonRepo) Update(ctx context.Context, lesson *models.Lesson) error {
	if m.items == nil {
		m.items = make(map[string]*models.Lesson)
	}
	m.updated++
	cp := *lesson
	m.items[lesson.ID] = &cp
	return nil
}

func (m *mockLessonRepo) Delete(ctx context.Context, id, schoolID string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

type mockRoster struct {
	teachers map[string]bool
	classes  map[string]bool
	subjects map[string]bool
	rooms    map[string]bool
}

func fullRoster() *mockRoster {
	return &mockRoster{
		teachers: map[string]bool{"t1": true, "t2": true, "t3": true},
		classes:  map[string]bool{"c1": true, "c2": true},
		subjects: map[string]bool{"s1": true},
		rooms:    map[string]bool{"r1": true},
	}
}

func (m *mockRoster) FindTeacher(ctx context.Context, id, schoolID string) (*models.Teacher, error) {
	if m.teachers[id] {
		return &models.Teacher{ID: id, SchoolID: schoolID}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRoster) FindClass(ctx context.Context, id, schoolID string) (*models.Class, error) {
	if m.classes[id] {
		return &models.Class{ID: id, SchoolID: schoolID}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRoster) FindSubject(ctx context.Context, id, schoolID string) (*models.Subject, error) {
	if m.subjects[id] {
		return &models.Subject{ID: id, SchoolID: schoolID}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRoster) FindRoom(ctx context.Context, id, schoolID string) (*models.Room, error) {
	if m.rooms[id] {
		return &models.Room{ID: id, SchoolID: schoolID}, nil
	}
	return nil, sql.ErrNoRows
}

// passthroughTx runs the callback directly, without a database.
type passthroughTx struct{}

func (passthroughTx) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockAudit struct {
	logs []*models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockInvalidator struct {
	schools []string
}

func (m *mockInvalidator) InvalidateSchool(ctx context.Context, schoolID string) {
	m.schools = append(m.schools, schoolID)
}

func newLessonService(repo *mockLessonRepo) (*LessonService, *mockAudit, *mockInvalidator) {
	audit := &mockAudit{}
	cache := &mockInvalidator{}
	checker := NewConflictChecker(repo, &stubUnavailabilityLister{}, DefaultWorkingHours, nil)
	svc := NewLessonService(repo, fullRoster(), checker, passthroughTx{}, audit, cache, nil, nil)
	return svc, audit, cache
}

func placeReq(teacherID, classID string, start, end models.ClockTime) PlaceLessonRequest {
	return PlaceLessonRequest{
		SubjectID: "s1",
		ClassID:   classID,
		TeacherID: teacherID,
		DayOfWeek: models.Monday,
		StartTime: start,
		EndTime:   end,
	}
}

func TestLessonServiceCreate(t *testing.T) {
	repo := &mockLessonRepo{}
	svc, audit, cache := newLessonService(repo)

	lesson, err := svc.Create(context.Background(), "school-1", "admin-1", placeReq("t1", "c1", mins(9, 0), mins(10, 0)))
	require.NoError(t, err)
	assert.NotEmpty(t, lesson.ID)
	assert.Equal(t, "school-1", lesson.SchoolID)
	assert.Equal(t, 1, repo.created)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLessonCreate, audit.logs[0].Action)
	assert.Equal(t, []string{"school-1"}, cache.schools)
}

func TestLessonServiceCreateConflictPersistsNothing(t *testing.T) {
	repo := &mockLessonRepo{items: map[string]*models.Lesson{
		"l1": {ID: "l1", SchoolID: "school-1", SubjectID: "s1", ClassID: "c2", TeacherID: "t1", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}}
	svc, audit, cache := newLessonService(repo)

	_, err := svc.Create(context.Background(), "school-1", "admin-1", placeReq("t1", "c1", mins(9, 30), mins(10, 30)))
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTeacherDoubleBooked))
	assert.Equal(t, 0, repo.created)
	assert.Empty(t, audit.logs)
	assert.Empty(t, cache.schools)
}

func TestLessonServiceCreateUnknownReference(t *testing.T) {
	repo := &mockLessonRepo{}
	svc, _, _ := newLessonService(repo)

	req := placeReq("t1", "c1", mins(9, 0), mins(10, 0))
	req.SubjectID = "missing"
	_, err := svc.Create(context.Background(), "school-1", "admin-1", req)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound))
}

func TestLessonServiceUpdateExcludesOwnSlot(t *testing.T) {
	repo := &mockLessonRepo{items: map[string]*models.Lesson{
		"l1": {ID: "l1", SchoolID: "school-1", SubjectID: "s1", ClassID: "c1", TeacherID: "t1", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}}
	svc, _, _ := newLessonService(repo)

	// Shifting a lesson 30 minutes into its own old window must succeed.
	updated, err := svc.Update(context.Background(), "l1", "school-1", "admin-1", placeReq("t1", "c1", mins(9, 30), mins(10, 30)))
	require.NoError(t, err)
	assert.Equal(t, mins(9, 30), updated.StartTime)
	assert.Equal(t, 1, repo.updated)
}

func TestLessonServiceRescheduleChecksBookingsOnly(t *testing.T) {
	repo := &mockLessonRepo{items: map[string]*models.Lesson{
		"l1": {ID: "l1", SchoolID: "school-1", SubjectID: "s1", ClassID: "c1", TeacherID: "t1", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
		"l2": {ID: "l2", SchoolID: "school-1", SubjectID: "s1", ClassID: "c2", TeacherID: "t1", DayOfWeek: models.Tuesday, StartTime: mins(11, 0), EndTime: mins(12, 0)},
	}}
	svc, _, _ := newLessonService(repo)

	// Working hours do not apply to the drag/resize path.
	updated, err := svc.Reschedule(context.Background(), "l1", "school-1", "admin-1", RescheduleLessonRequest{
		DayOfWeek: models.Monday, StartTime: mins(18, 0), EndTime: mins(19, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, mins(18, 0), updated.StartTime)

	// Double-booking still does.
	_, err = svc.Reschedule(context.Background(), "l1", "school-1", "admin-1", RescheduleLessonRequest{
		DayOfWeek: models.Tuesday, StartTime: mins(11, 30), EndTime: mins(12, 30),
	})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTeacherDoubleBooked))
}

func TestLessonServiceDeleteUnknown(t *testing.T) {
	repo := &mockLessonRepo{}
	svc, _, _ := newLessonService(repo)

	err := svc.Delete(context.Background(), "missing", "school-1", "admin-1")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound))
}

func TestLessonServiceDelete(t *testing.T) {
	repo := &mockLessonRepo{items: map[string]*models.Lesson{
		"l1": {ID: "l1", SchoolID: "school-1", SubjectID: "s1", ClassID: "c1", TeacherID: "t1", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}}
	svc, audit, cache := newLessonService(repo)

	require.NoError(t, svc.Delete(context.Background(), "l1", "school-1", "admin-1"))
	assert.Equal(t, []string{"l1"}, repo.deleted)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLessonDelete, audit.logs[0].Action)
	assert.Equal(t, []string{"school-1"}, cache.schools)
}
