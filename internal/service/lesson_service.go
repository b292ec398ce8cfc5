package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type lessonRepository interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error)
	FindByID(ctx context.Context, id, schoolID string) (*models.Lesson, error)
	ListByDay(ctx context.Context, schoolID string, day models.DayOfWeek) ([]models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id, schoolID string) error
}

type rosterRepository interface {
	FindTeacher(ctx context.Context, id, schoolID string) (*models.Teacher, error)
	FindClass(ctx context.Context, id, schoolID string) (*models.Class, error)
	FindSubject(ctx context.Context, id, schoolID string) (*models.Subject, error)
	FindRoom(ctx context.Context, id, schoolID string) (*models.Room, error)
}

type transactor interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheInvalidator interface {
	InvalidateSchool(ctx context.Context, schoolID string)
}

// PlaceLessonRequest describes payload for creating or updating a lesson.
type PlaceLessonRequest struct {
	SubjectID string           `json:"subject_id" validate:"required"`
	ClassID   string           `json:"class_id" validate:"required"`
	TeacherID string           `json:"teacher_id" validate:"required"`
	RoomID    *string          `json:"room_id,omitempty"`
	DayOfWeek models.DayOfWeek `json:"day_of_week" validate:"required"`
	StartTime models.ClockTime `json:"start_time"`
	EndTime   models.ClockTime `json:"end_time"`
}

// RescheduleLessonRequest moves an existing lesson to a new weekly window.
type RescheduleLessonRequest struct {
	DayOfWeek models.DayOfWeek `json:"day_of_week" validate:"required"`
	StartTime models.ClockTime `json:"start_time"`
	EndTime   models.ClockTime `json:"end_time"`
}

// LessonService orchestrates lesson placement: referential-integrity checks,
// conflict checking, and persistence under one serializable transaction.
type LessonService struct {
	repo      lessonRepository
	roster    rosterRepository
	checker   *ConflictChecker
	tx        transactor
	audit     auditLogger
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService instantiates LessonService.
func NewLessonService(repo lessonRepository, roster rosterRepository, checker *ConflictChecker, tx transactor, audit auditLogger, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, roster: roster, checker: checker, tx: tx, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns lessons with pagination metadata.
func (s *LessonService) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error) {
	lessons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return lessons, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads a single lesson.
func (s *LessonService) Get(ctx context.Context, id, schoolID string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, id, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// CheckPlacement runs the conflict checker without persisting anything, so
// the UI can validate a slot before committing.
func (s *LessonService) CheckPlacement(ctx context.Context, candidate models.PlacementCandidate, excludeLessonID string) error {
	return s.checker.CheckPlacement(ctx, candidate, excludeLessonID)
}

// Create places a new lesson after referential and conflict validation.
func (s *LessonService) Create(ctx context.Context, schoolID, actorID string, req PlaceLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson := &models.Lesson{
		SchoolID:  schoolID,
		SubjectID: req.SubjectID,
		ClassID:   req.ClassID,
		TeacherID: req.TeacherID,
		RoomID:    req.RoomID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}

	err := s.tx.Within(ctx, func(ctx context.Context) error {
		if err := s.verifyReferences(ctx, schoolID, req); err != nil {
			return err
		}
		if err := s.checker.CheckPlacement(ctx, candidateFromLesson(lesson), ""); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, lesson); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, schoolID, actorID, models.AuditActionLessonCreate, lesson)
	return lesson, nil
}

// Update re-places an existing lesson, excluding its own prior slot from
// conflict evaluation.
func (s *LessonService) Update(ctx context.Context, id, schoolID, actorID string, req PlaceLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	var updated *models.Lesson
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByID(ctx, id, schoolID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
		}
		if err := s.verifyReferences(ctx, schoolID, req); err != nil {
			return err
		}

		updated = &models.Lesson{
			ID:        existing.ID,
			SchoolID:  schoolID,
			SubjectID: req.SubjectID,
			ClassID:   req.ClassID,
			TeacherID: req.TeacherID,
			RoomID:    req.RoomID,
			DayOfWeek: req.DayOfWeek,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			CreatedAt: existing.CreatedAt,
		}
		if err := s.checker.CheckPlacement(ctx, candidateFromLesson(updated), existing.ID); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, updated); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, schoolID, actorID, models.AuditActionLessonUpdate, updated)
	return updated, nil
}

// Reschedule moves a lesson to a new window, re-deriving teacher, class, and
// room from the stored record. Only double-booking is re-validated: manual
// drag operations are not re-checked against working hours or unavailability.
func (s *LessonService) Reschedule(ctx context.Context, id, schoolID, actorID string, req RescheduleLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	var updated *models.Lesson
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByID(ctx, id, schoolID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
		}

		updated = existing
		updated.DayOfWeek = req.DayOfWeek
		updated.StartTime = req.StartTime
		updated.EndTime = req.EndTime

		if err := s.checker.CheckBookingsOnly(ctx, candidateFromLesson(updated), existing.ID); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, updated); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule lesson")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, schoolID, actorID, models.AuditActionLessonUpdate, updated)
	return updated, nil
}

// Delete removes a lesson.
func (s *LessonService) Delete(ctx context.Context, id, schoolID, actorID string) error {
	lesson, err := s.repo.FindByID(ctx, id, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.repo.Delete(ctx, id, schoolID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	s.afterWrite(ctx, schoolID, actorID, models.AuditActionLessonDelete, lesson)
	return nil
}

func (s *LessonService) verifyReferences(ctx context.Context, schoolID string, req PlaceLessonRequest) error {
	if _, err := s.roster.FindSubject(ctx, req.SubjectID, schoolID); err != nil {
		return refError(err, "subject not found")
	}
	if _, err := s.roster.FindClass(ctx, req.ClassID, schoolID); err != nil {
		return refError(err, "class not found")
	}
	if _, err := s.roster.FindTeacher(ctx, req.TeacherID, schoolID); err != nil {
		return refError(err, "teacher not found")
	}
	if req.RoomID != nil {
		if _, err := s.roster.FindRoom(ctx, *req.RoomID, schoolID); err != nil {
			return refError(err, "room not found")
		}
	}
	return nil
}

func (s *LessonService) afterWrite(ctx context.Context, schoolID, actorID, action string, lesson *models.Lesson) {
	if s.cache != nil {
		s.cache.InvalidateSchool(ctx, schoolID)
	}
	if s.audit == nil || lesson == nil {
		return
	}
	payload, _ := json.Marshal(lesson)
	log := &models.AuditLog{
		SchoolID:   schoolID,
		UserID:     &actorID,
		Action:     action,
		Resource:   "lesson",
		ResourceID: &lesson.ID,
		NewValues:  payload,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func refError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify references")
}

func candidateFromLesson(lesson *models.Lesson) models.PlacementCandidate {
	return models.PlacementCandidate{
		SchoolID:  lesson.SchoolID,
		TeacherID: lesson.TeacherID,
		ClassID:   lesson.ClassID,
		RoomID:    lesson.RoomID,
		DayOfWeek: lesson.DayOfWeek,
		StartTime: lesson.StartTime,
		EndTime:   lesson.EndTime,
	}
}
