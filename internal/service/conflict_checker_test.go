package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type stubLessonFinder struct {
	lessons []models.Lesson
	err     error
}

func (s *stubLessonFinder) ListByDay(ctx context.Context, schoolID string, day models.DayOfWeek) ([]models.Lesson, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Lesson
	for _, l := range s.lessons {
		if l.SchoolID == schoolID && l.DayOfWeek == day {
			out = append(out, l)
		}
	}
	return out, nil
}

type stubUnavailabilityLister struct {
	blocks []models.UnavailabilityBlock
	err    error
}

func (s *stubUnavailabilityLister) List(ctx context.Context, filter models.UnavailabilityFilter) ([]models.UnavailabilityBlock, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.UnavailabilityBlock
	for _, b := range s.blocks {
		if b.SchoolID != filter.SchoolID || b.TeacherID != filter.TeacherID {
			continue
		}
		if filter.DayOfWeek != "" && b.DayOfWeek != filter.DayOfWeek {
			continue
		}
		if filter.ExcludeID != "" && b.ID == filter.ExcludeID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func mins(h, m int) models.ClockTime {
	return models.ClockTime(h*60 + m)
}

func checkerWith(lessons []models.Lesson, blocks []models.UnavailabilityBlock) *ConflictChecker {
	return NewConflictChecker(&stubLessonFinder{lessons: lessons}, &stubUnavailabilityLister{blocks: blocks}, DefaultWorkingHours, nil)
}

func monCandidate(teacherID, classID string, start, end models.ClockTime) models.PlacementCandidate {
	return models.PlacementCandidate{
		SchoolID:  "school-1",
		TeacherID: teacherID,
		ClassID:   classID,
		DayOfWeek: models.Monday,
		StartTime: start,
		EndTime:   end,
	}
}

func TestCheckPlacementInvalidInterval(t *testing.T) {
	checker := checkerWith(nil, nil)

	err := checker.CheckPlacement(context.Background(), monCandidate("t1", "c1", mins(10, 0), mins(9, 0)), "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidInterval))

	err = checker.CheckPlacement(context.Background(), monCandidate("t1", "c1", mins(10, 0), mins(10, 0)), "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidInterval))
}

func TestCheckPlacementWorkingHours(t *testing.T) {
	checker := checkerWith(nil, nil)

	// Ends exactly at 17:00: legal, the upper bound is inclusive.
	err := checker.CheckPlacement(context.Background(), monCandidate("t1", "c1", mins(16, 0), mins(17, 0)), "")
	assert.NoError(t, err)

	// One minute past the bound is rejected.
	err = checker.CheckPlacement(context.Background(), monCandidate("t1", "c1", mins(16, 1), mins(17, 1)), "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrOutsideWorkingHours))

	// Starting before 08:00 is rejected.
	err = checker.CheckPlacement(context.Background(), monCandidate("t1", "c1", mins(7, 30), mins(8, 30)), "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrOutsideWorkingHours))

	// Weekends are rejected regardless of clock time.
	weekend := monCandidate("t1", "c1", mins(9, 0), mins(10, 0))
	weekend.DayOfWeek = models.Saturday
	err = checker.CheckPlacement(context.Background(), weekend, "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrOutsideWorkingHours))
}

func TestCheckPlacementTeacherUnavailable(t *testing.T) {
	blocks := []models.UnavailabilityBlock{
		{ID: "b1", SchoolID: "school-1", TeacherID: "t1", DayOfWeek: models.Monday, StartTime: mins(13, 0), EndTime: mins(15, 0)},
	}
	checker := checkerWith(nil, blocks)

	err := checker.CheckPlacement(context.Background(), monCandidate("t1", "c1", mins(14, 0), mins(15, 0)), "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTeacherUnavailable))

	// A block ending exactly where the lesson starts is fine.
	err = checker.CheckPlacement(context.Background(), monCandidate("t1", "c1", mins(15, 0), mins(16, 0)), "")
	assert.NoError(t, err)

	// Another teacher is unaffected by t1's block.
	err = checker.CheckPlacement(context.Background(), monCandidate("t2", "c1", mins(14, 0), mins(15, 0)), "")
	assert.NoError(t, err)
}

func TestCheckPlacementTeacherDoubleBooked(t *testing.T) {
	lessons := []models.Lesson{
		{ID: "l1", SchoolID: "school-1", TeacherID: "t1", ClassID: "c1", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}
	checker := checkerWith(lessons, nil)

	err := checker.CheckPlacement(context.Background(), monCandidate("t1", "c2", mins(9, 30), mins(10, 30)), "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTeacherDoubleBooked))

	// The same slot in another school does not conflict.
	other := monCandidate("t1", "c2", mins(9, 30), mins(10, 30))
	other.SchoolID = "school-2"
	assert.NoError(t, checker.CheckPlacement(context.Background(), other, ""))
}

func TestCheckPlacementClassDoubleBooked(t *testing.T) {
	lessons := []models.Lesson{
		{ID: "l1", SchoolID: "school-1", TeacherID: "t1", ClassID: "c1", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}
	checker := checkerWith(lessons, nil)

	err := checker.CheckPlacement(context.Background(), monCandidate("t2", "c1", mins(9, 30), mins(10, 30)), "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrClassDoubleBooked))
}

func TestCheckPlacementRoomDoubleBooked(t *testing.T) {
	room := "r1"
	lessons := []models.Lesson{
		{ID: "l1", SchoolID: "school-1", TeacherID: "t1", ClassID: "c1", RoomID: &room, DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}
	checker := checkerWith(lessons, nil)

	candidate := monCandidate("t2", "c2", mins(9, 30), mins(10, 30))
	candidate.RoomID = &room
	err := checker.CheckPlacement(context.Background(), candidate, "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrRoomDoubleBooked))

	// Roomless candidates never trip the room rule.
	candidate.RoomID = nil
	assert.NoError(t, checker.CheckPlacement(context.Background(), candidate, ""))
}

func TestCheckPlacementRuleOrder(t *testing.T) {
	// One candidate violating several rules must always surface the teacher
	// conflict before the class conflict, regardless of lesson order.
	room := "r1"
	lessons := []models.Lesson{
		{ID: "l1", SchoolID: "school-1", TeacherID: "other", ClassID: "c1", RoomID: &room, DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
		{ID: "l2", SchoolID: "school-1", TeacherID: "t1", ClassID: "other", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}
	checker := checkerWith(lessons, nil)

	candidate := monCandidate("t1", "c1", mins(9, 0), mins(10, 0))
	candidate.RoomID = &room
	err := checker.CheckPlacement(context.Background(), candidate, "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTeacherDoubleBooked))

	// Unavailability is reported ahead of any double-booking.
	blocks := []models.UnavailabilityBlock{
		{ID: "b1", SchoolID: "school-1", TeacherID: "t1", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}
	checker = checkerWith(lessons, blocks)
	err = checker.CheckPlacement(context.Background(), candidate, "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTeacherUnavailable))
}

func TestCheckPlacementExcludesOwnLesson(t *testing.T) {
	lessons := []models.Lesson{
		{ID: "l1", SchoolID: "school-1", TeacherID: "t1", ClassID: "c1", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}
	checker := checkerWith(lessons, nil)

	// Re-placing l1 onto an overlapping slot must not conflict with itself.
	err := checker.CheckPlacement(context.Background(), monCandidate("t1", "c1", mins(9, 30), mins(10, 30)), "l1")
	assert.NoError(t, err)
}

func TestCheckBookingsOnlySkipsPolicyRules(t *testing.T) {
	blocks := []models.UnavailabilityBlock{
		{ID: "b1", SchoolID: "school-1", TeacherID: "t1", DayOfWeek: models.Monday, StartTime: mins(18, 0), EndTime: mins(20, 0)},
	}
	lessons := []models.Lesson{
		{ID: "l1", SchoolID: "school-1", TeacherID: "t1", ClassID: "c1", DayOfWeek: models.Monday, StartTime: mins(18, 0), EndTime: mins(19, 0)},
	}
	checker := checkerWith(lessons, blocks)

	// Outside working hours and inside an unavailability block, but the
	// narrow check only cares about double-booking.
	err := checker.CheckBookingsOnly(context.Background(), monCandidate("t1", "c2", mins(19, 0), mins(20, 0)), "")
	require.NoError(t, err)

	err = checker.CheckBookingsOnly(context.Background(), monCandidate("t1", "c2", mins(18, 30), mins(19, 30)), "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTeacherDoubleBooked))
}

func TestCheckSwapSkipsClassAndRoomRules(t *testing.T) {
	room := "r1"
	lessons := []models.Lesson{
		// The lesson being swapped keeps its slot, so an overlapping lesson
		// of the same class or room must not fail the swap.
		{ID: "l2", SchoolID: "school-1", TeacherID: "other", ClassID: "c1", RoomID: &room, DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}
	checker := checkerWith(lessons, nil)

	candidate := monCandidate("t2", "c1", mins(9, 0), mins(10, 0))
	candidate.RoomID = &room
	assert.NoError(t, checker.CheckSwap(context.Background(), candidate, "l1"))
}

func TestCheckSwapCatchesNewTeacherConflicts(t *testing.T) {
	lessons := []models.Lesson{
		{ID: "l2", SchoolID: "school-1", TeacherID: "t2", ClassID: "c9", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(10, 0)},
	}
	blocks := []models.UnavailabilityBlock{
		{ID: "b1", SchoolID: "school-1", TeacherID: "t3", DayOfWeek: models.Monday, StartTime: mins(9, 0), EndTime: mins(12, 0)},
	}
	checker := checkerWith(lessons, blocks)

	// Swapping onto t2, who already teaches in the window.
	err := checker.CheckSwap(context.Background(), monCandidate("t2", "c1", mins(9, 30), mins(10, 30)), "l1")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTeacherDoubleBooked))

	// Swapping onto t3, who is unavailable.
	err = checker.CheckSwap(context.Background(), monCandidate("t3", "c1", mins(9, 30), mins(10, 30)), "l1")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTeacherUnavailable))
}
