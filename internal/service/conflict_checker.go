package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type lessonFinder interface {
	ListByDay(ctx context.Context, schoolID string, day models.DayOfWeek) ([]models.Lesson, error)
}

type unavailabilityLister interface {
	List(ctx context.Context, filter models.UnavailabilityFilter) ([]models.UnavailabilityBlock, error)
}

// WorkingHoursPolicy bounds the schedulable window on weekdays. End is an
// inclusive boundary: a lesson finishing exactly at End is legal.
type WorkingHoursPolicy struct {
	Start models.ClockTime
	End   models.ClockTime
}

// DefaultWorkingHours is the 08:00-17:00 weekday policy.
var DefaultWorkingHours = WorkingHoursPolicy{
	Start: models.ClockTime(8 * 60),
	End:   models.ClockTime(17 * 60),
}

// ConflictChecker decides whether a proposed weekly lesson placement is
// legal. It is pure decision logic over data fetched from the lesson and
// unavailability stores; all three placement paths (create, update, request
// approval) run through it with only the exclusion id and the
// source-of-truth candidate varying.
type ConflictChecker struct {
	lessons        lessonFinder
	unavailability unavailabilityLister
	policy         WorkingHoursPolicy
	logger         *zap.Logger
}

// NewConflictChecker builds the checker. A zero policy falls back to the
// default working hours.
func NewConflictChecker(lessons lessonFinder, unavailability unavailabilityLister, policy WorkingHoursPolicy, logger *zap.Logger) *ConflictChecker {
	if policy.Start == 0 && policy.End == 0 {
		policy = DefaultWorkingHours
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictChecker{lessons: lessons, unavailability: unavailability, policy: policy, logger: logger}
}

// CheckPlacement evaluates every rule in fixed order with the first failure
// winning: interval sanity, working hours, teacher unavailability, teacher
// double-booking, class double-booking, room double-booking. Policy checks
// run first so trivially invalid input fails before any store lookup.
// excludeLessonID keeps an update from conflicting with the lesson's own
// prior placement.
func (c *ConflictChecker) CheckPlacement(ctx context.Context, candidate models.PlacementCandidate, excludeLessonID string) error {
	if err := c.checkInterval(candidate); err != nil {
		return err
	}
	if err := c.checkWorkingHours(candidate); err != nil {
		return err
	}
	if err := c.checkUnavailability(ctx, candidate.TeacherID, candidate); err != nil {
		return err
	}
	return c.checkBookings(ctx, candidate, excludeLessonID, true, true)
}

// CheckBookingsOnly skips the working-hours and unavailability rules and
// evaluates only double-booking. The drag/resize reschedule path uses this
// intentionally narrower check.
func (c *ConflictChecker) CheckBookingsOnly(ctx context.Context, candidate models.PlacementCandidate, excludeLessonID string) error {
	if err := c.checkInterval(candidate); err != nil {
		return err
	}
	return c.checkBookings(ctx, candidate, excludeLessonID, true, true)
}

// CheckSwap validates handing a lesson's existing window to a different
// teacher: working hours, the new teacher's unavailability, and the new
// teacher's double-booking. The class keeps its slot, so class and room
// rules cannot newly fail and are skipped.
func (c *ConflictChecker) CheckSwap(ctx context.Context, candidate models.PlacementCandidate, excludeLessonID string) error {
	if err := c.checkInterval(candidate); err != nil {
		return err
	}
	if err := c.checkWorkingHours(candidate); err != nil {
		return err
	}
	if err := c.checkUnavailability(ctx, candidate.TeacherID, candidate); err != nil {
		return err
	}
	return c.checkBookings(ctx, candidate, excludeLessonID, false, false)
}

func (c *ConflictChecker) checkInterval(candidate models.PlacementCandidate) error {
	if !candidate.DayOfWeek.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown day of week")
	}
	if candidate.EndTime <= candidate.StartTime {
		return appErrors.Clone(appErrors.ErrInvalidInterval, "")
	}
	return nil
}

func (c *ConflictChecker) checkWorkingHours(candidate models.PlacementCandidate) error {
	if candidate.DayOfWeek.Weekend() {
		return appErrors.Clone(appErrors.ErrOutsideWorkingHours, "lessons cannot be scheduled on weekends")
	}
	if candidate.StartTime < c.policy.Start || candidate.EndTime > c.policy.End {
		return appErrors.Clone(appErrors.ErrOutsideWorkingHours, "lesson must fall within "+c.policy.Start.String()+"-"+c.policy.End.String())
	}
	return nil
}

func (c *ConflictChecker) checkUnavailability(ctx context.Context, teacherID string, candidate models.PlacementCandidate) error {
	blocks, err := c.unavailability.List(ctx, models.UnavailabilityFilter{
		SchoolID:  candidate.SchoolID,
		TeacherID: teacherID,
		DayOfWeek: candidate.DayOfWeek,
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher unavailability")
	}
	window := candidate.Window()
	for _, block := range blocks {
		if window.Overlaps(block.Window()) {
			return appErrors.Clone(appErrors.ErrTeacherUnavailable, "teacher is unavailable "+string(block.DayOfWeek)+" "+block.StartTime.String()+"-"+block.EndTime.String())
		}
	}
	return nil
}

func (c *ConflictChecker) checkBookings(ctx context.Context, candidate models.PlacementCandidate, excludeLessonID string, includeClass, includeRoom bool) error {
	existing, err := c.lessons.ListByDay(ctx, candidate.SchoolID, candidate.DayOfWeek)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing lessons")
	}

	window := candidate.Window()
	overlapping := existing[:0:0]
	for _, lesson := range existing {
		if lesson.ID == excludeLessonID {
			continue
		}
		if window.Overlaps(lesson.Window()) {
			overlapping = append(overlapping, lesson)
		}
	}

	// Rule order is fixed: teacher, then class, then room.
	for _, lesson := range overlapping {
		if lesson.TeacherID == candidate.TeacherID {
			return appErrors.Clone(appErrors.ErrTeacherDoubleBooked, "teacher already booked "+lesson.StartTime.String()+"-"+lesson.EndTime.String())
		}
	}
	if includeClass {
		for _, lesson := range overlapping {
			if lesson.ClassID == candidate.ClassID {
				return appErrors.Clone(appErrors.ErrClassDoubleBooked, "class already booked "+lesson.StartTime.String()+"-"+lesson.EndTime.String())
			}
		}
	}
	if includeRoom && candidate.RoomID != nil {
		for _, lesson := range overlapping {
			if lesson.RoomID != nil && *lesson.RoomID == *candidate.RoomID {
				return appErrors.Clone(appErrors.ErrRoomDoubleBooked, "room already booked "+lesson.StartTime.String()+"-"+lesson.EndTime.String())
			}
		}
	}
	return nil
}
