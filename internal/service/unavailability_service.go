package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type unavailabilityRepository interface {
	List(ctx context.Context, filter models.UnavailabilityFilter) ([]models.UnavailabilityBlock, error)
	FindByID(ctx context.Context, id, schoolID string) (*models.UnavailabilityBlock, error)
	Create(ctx context.Context, block *models.UnavailabilityBlock) error
	Update(ctx context.Context, block *models.UnavailabilityBlock) error
	Delete(ctx context.Context, id, schoolID string) error
}

// UpsertUnavailabilityRequest describes payload for creating or updating an
// unavailability block.
type UpsertUnavailabilityRequest struct {
	DayOfWeek models.DayOfWeek `json:"day_of_week" validate:"required"`
	StartTime models.ClockTime `json:"start_time"`
	EndTime   models.ClockTime `json:"end_time"`
	Notes     *string          `json:"notes,omitempty"`
}

// UnavailabilityService manages a teacher's recurring unavailable windows.
// Writes enforce the no-self-overlap invariant: sibling blocks for the same
// (school, teacher, day) may never overlap.
type UnavailabilityService struct {
	repo      unavailabilityRepository
	roster    rosterRepository
	tx        transactor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUnavailabilityService instantiates UnavailabilityService.
func NewUnavailabilityService(repo unavailabilityRepository, roster rosterRepository, tx transactor, validate *validator.Validate, logger *zap.Logger) *UnavailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnavailabilityService{repo: repo, roster: roster, tx: tx, validator: validate, logger: logger}
}

// List returns a teacher's unavailability blocks, optionally for one day.
func (s *UnavailabilityService) List(ctx context.Context, schoolID, teacherID string, day models.DayOfWeek) ([]models.UnavailabilityBlock, error) {
	if day != "" && !day.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown day of week")
	}
	blocks, err := s.repo.List(ctx, models.UnavailabilityFilter{SchoolID: schoolID, TeacherID: teacherID, DayOfWeek: day})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unavailability blocks")
	}
	return blocks, nil
}

// Create stores a new block after checking it against every sibling.
func (s *UnavailabilityService) Create(ctx context.Context, schoolID, teacherID string, req UpsertUnavailabilityRequest) (*models.UnavailabilityBlock, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.roster.FindTeacher(ctx, teacherID, schoolID); err != nil {
		return nil, refError(err, "teacher not found")
	}

	block := &models.UnavailabilityBlock{
		SchoolID:  schoolID,
		TeacherID: teacherID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
	}

	err := s.tx.Within(ctx, func(ctx context.Context) error {
		if err := s.ensureNoOverlap(ctx, block, ""); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, block); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create unavailability block")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// Update modifies an existing block, excluding it from its own overlap check.
// The block must belong to teacherID; a block id under another teacher's
// collection reads as not found.
func (s *UnavailabilityService) Update(ctx context.Context, id, schoolID, teacherID string, req UpsertUnavailabilityRequest) (*models.UnavailabilityBlock, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	var updated *models.UnavailabilityBlock
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		existing, err := s.loadOwnedBlock(ctx, id, schoolID, teacherID)
		if err != nil {
			return err
		}

		updated = existing
		updated.DayOfWeek = req.DayOfWeek
		updated.StartTime = req.StartTime
		updated.EndTime = req.EndTime
		updated.Notes = req.Notes

		if err := s.ensureNoOverlap(ctx, updated, existing.ID); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, updated); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update unavailability block")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes one of teacherID's blocks.
func (s *UnavailabilityService) Delete(ctx context.Context, id, schoolID, teacherID string) error {
	if _, err := s.loadOwnedBlock(ctx, id, schoolID, teacherID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, schoolID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete unavailability block")
	}
	return nil
}

func (s *UnavailabilityService) loadOwnedBlock(ctx context.Context, id, schoolID, teacherID string) (*models.UnavailabilityBlock, error) {
	block, err := s.repo.FindByID(ctx, id, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unavailability block not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unavailability block")
	}
	if block.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unavailability block not found")
	}
	return block, nil
}

func (s *UnavailabilityService) validateRequest(req UpsertUnavailabilityRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unavailability payload")
	}
	if !req.DayOfWeek.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown day of week")
	}
	if req.EndTime <= req.StartTime {
		return appErrors.Clone(appErrors.ErrInvalidInterval, "")
	}
	return nil
}

func (s *UnavailabilityService) ensureNoOverlap(ctx context.Context, block *models.UnavailabilityBlock, excludeID string) error {
	siblings, err := s.repo.List(ctx, models.UnavailabilityFilter{
		SchoolID:  block.SchoolID,
		TeacherID: block.TeacherID,
		DayOfWeek: block.DayOfWeek,
		ExcludeID: excludeID,
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sibling blocks")
	}
	window := block.Window()
	for _, sibling := range siblings {
		if window.Overlaps(sibling.Window()) {
			return appErrors.Clone(appErrors.ErrOverlappingBlock, "overlaps existing block "+sibling.StartTime.String()+"-"+sibling.EndTime.String())
		}
	}
	return nil
}
