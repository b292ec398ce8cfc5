package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/internal/repository"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

type changeRequestRepository interface {
	List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ScheduleChangeRequest, int, error)
	FindByID(ctx context.Context, id, schoolID string) (*models.ScheduleChangeRequest, error)
	Create(ctx context.Context, request *models.ScheduleChangeRequest) error
	Resolve(ctx context.Context, params repository.ResolveChangeRequestParams) error
}

// SubmitChangeRequest describes a teacher's proposal to alter a lesson.
type SubmitChangeRequest struct {
	LessonID          string                   `json:"lesson_id" validate:"required"`
	ChangeType        models.ChangeRequestType `json:"change_type" validate:"required"`
	ProposedDay       *models.DayOfWeek        `json:"proposed_day,omitempty"`
	ProposedStartTime *models.ClockTime        `json:"proposed_start_time,omitempty"`
	ProposedEndTime   *models.ClockTime        `json:"proposed_end_time,omitempty"`
	SwapTeacherID     *string                  `json:"proposed_swap_teacher_id,omitempty"`
	Reason            string                   `json:"reason" validate:"required"`
}

// ChangeRequestService carries schedule change requests through
// PENDING -> {APPROVED, REJECTED, CANCELED}. Conflicts are evaluated only at
// approval time, against the live schedule, because the world may have
// changed since submission. A failed approval leaves the request PENDING;
// rejection is a distinct admin action requiring notes.
type ChangeRequestService struct {
	repo      changeRequestRepository
	lessons   lessonRepository
	roster    rosterRepository
	checker   *ConflictChecker
	tx        transactor
	audit     auditLogger
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChangeRequestService instantiates ChangeRequestService.
func NewChangeRequestService(repo changeRequestRepository, lessons lessonRepository, roster rosterRepository, checker *ConflictChecker, tx transactor, audit auditLogger, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *ChangeRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeRequestService{repo: repo, lessons: lessons, roster: roster, checker: checker, tx: tx, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns requests visible to the actor: admins see the whole school,
// teachers only their own submissions.
func (s *ChangeRequestService) List(ctx context.Context, filter models.ChangeRequestFilter, actor *models.JWTClaims) ([]models.ScheduleChangeRequest, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleTeacher {
		filter.RequestingTeacherID = actor.TeacherID
	}
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list change requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one request, enforcing the same visibility scoping as List.
func (s *ChangeRequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ScheduleChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.loadRequest(ctx, id, actor.SchoolID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleTeacher && request.RequestingTeacherID != actor.TeacherID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// Submit validates the proposal's shape and stores it as PENDING. No
// conflict check runs here.
func (s *ChangeRequestService) Submit(ctx context.Context, schoolID, requestingTeacherID string, req SubmitChangeRequest) (*models.ScheduleChangeRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change request payload")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}

	lesson, err := s.lessons.FindByID(ctx, req.LessonID, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	request := &models.ScheduleChangeRequest{
		SchoolID:            schoolID,
		LessonID:            lesson.ID,
		RequestingTeacherID: requestingTeacherID,
		ChangeType:          req.ChangeType,
		Reason:              strings.TrimSpace(req.Reason),
		Status:              models.ChangeRequestPending,
	}

	switch req.ChangeType {
	case models.ChangeRequestTimeChange:
		if req.ProposedDay == nil || req.ProposedStartTime == nil || req.ProposedEndTime == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "proposed day, start, and end are required for a time change")
		}
		if req.SwapTeacherID != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "swap teacher must not be set for a time change")
		}
		if !req.ProposedDay.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown day of week")
		}
		if *req.ProposedEndTime <= *req.ProposedStartTime {
			return nil, appErrors.Clone(appErrors.ErrInvalidInterval, "")
		}
		request.ProposedDay = req.ProposedDay
		request.ProposedStartTime = req.ProposedStartTime
		request.ProposedEndTime = req.ProposedEndTime

	case models.ChangeRequestSwap:
		if req.SwapTeacherID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "swap teacher is required for a swap")
		}
		if req.ProposedDay != nil || req.ProposedStartTime != nil || req.ProposedEndTime != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "time fields must not be set for a swap")
		}
		if lesson.TeacherID != requestingTeacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the lesson's current teacher may request a swap")
		}
		if *req.SwapTeacherID == requestingTeacherID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "swap target must differ from the requesting teacher")
		}
		if _, err := s.roster.FindTeacher(ctx, *req.SwapTeacherID, schoolID); err != nil {
			return nil, refError(err, "swap teacher not found")
		}
		request.ProposedSwapTeacher = req.SwapTeacherID

	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported change type")
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create change request")
	}
	s.emitAudit(ctx, schoolID, requestingTeacherID, models.AuditActionRequestSubmit, request)
	return request, nil
}

// Cancel transitions a PENDING request to CANCELED. Only the original
// requester may cancel.
func (s *ChangeRequestService) Cancel(ctx context.Context, id, schoolID, byTeacherID string) (*models.ScheduleChangeRequest, error) {
	var request *models.ScheduleChangeRequest
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		var err error
		request, err = s.loadRequest(ctx, id, schoolID)
		if err != nil {
			return err
		}
		if request.RequestingTeacherID != byTeacherID {
			return appErrors.Clone(appErrors.ErrUnauthorizedTransition, "only the requesting teacher may cancel")
		}
		if request.Status != models.ChangeRequestPending {
			return appErrors.Clone(appErrors.ErrUnauthorizedTransition, "request is no longer pending")
		}
		return s.resolve(ctx, request, models.ChangeRequestCanceled, byTeacherID, nil)
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, schoolID, byTeacherID, models.AuditActionRequestCancel, request)
	return request, nil
}

// Reject transitions a PENDING request to REJECTED. Admin notes are
// mandatory; no lesson mutation occurs.
func (s *ChangeRequestService) Reject(ctx context.Context, id, schoolID, byAdminID, adminNotes string) (*models.ScheduleChangeRequest, error) {
	adminNotes = strings.TrimSpace(adminNotes)
	if adminNotes == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "admin notes are required when rejecting")
	}

	var request *models.ScheduleChangeRequest
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		var err error
		request, err = s.loadRequest(ctx, id, schoolID)
		if err != nil {
			return err
		}
		if request.Status != models.ChangeRequestPending {
			return appErrors.Clone(appErrors.ErrUnauthorizedTransition, "request is no longer pending")
		}
		return s.resolve(ctx, request, models.ChangeRequestRejected, byAdminID, &adminNotes)
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, schoolID, byAdminID, models.AuditActionRequestReject, request)
	return request, nil
}

// Approve re-validates the proposal against the live schedule and, on
// success, commits the lesson mutation and marks the request APPROVED in the
// same transaction. Any conflict aborts with its own reason code and the
// request stays PENDING.
func (s *ChangeRequestService) Approve(ctx context.Context, id, schoolID, byAdminID string) (*models.ScheduleChangeRequest, error) {
	var request *models.ScheduleChangeRequest
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		var err error
		request, err = s.loadRequest(ctx, id, schoolID)
		if err != nil {
			return err
		}
		if request.Status != models.ChangeRequestPending {
			return appErrors.Clone(appErrors.ErrUnauthorizedTransition, "request is no longer pending")
		}

		// Always the live lesson, never a snapshot from submission time.
		lesson, err := s.lessons.FindByID(ctx, request.LessonID, schoolID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrStaleState, "the lesson this request refers to no longer exists")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
		}

		switch request.ChangeType {
		case models.ChangeRequestTimeChange:
			if request.ProposedDay == nil || request.ProposedStartTime == nil || request.ProposedEndTime == nil {
				return appErrors.Clone(appErrors.ErrValidation, "time change request is missing its proposed window")
			}
			candidate := candidateFromLesson(lesson)
			candidate.DayOfWeek = *request.ProposedDay
			candidate.StartTime = *request.ProposedStartTime
			candidate.EndTime = *request.ProposedEndTime
			if err := s.checker.CheckPlacement(ctx, candidate, lesson.ID); err != nil {
				return err
			}
			lesson.DayOfWeek = candidate.DayOfWeek
			lesson.StartTime = candidate.StartTime
			lesson.EndTime = candidate.EndTime

		case models.ChangeRequestSwap:
			if request.ProposedSwapTeacher == nil {
				return appErrors.Clone(appErrors.ErrValidation, "swap request is missing its proposed teacher")
			}
			if lesson.TeacherID != request.RequestingTeacherID {
				return appErrors.Clone(appErrors.ErrStaleState, "the lesson's teacher changed since this request was submitted")
			}
			candidate := candidateFromLesson(lesson)
			candidate.TeacherID = *request.ProposedSwapTeacher
			if err := s.checker.CheckSwap(ctx, candidate, lesson.ID); err != nil {
				return err
			}
			lesson.TeacherID = candidate.TeacherID

		default:
			return appErrors.Clone(appErrors.ErrValidation, "unsupported change type")
		}

		if err := s.lessons.Update(ctx, lesson); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply lesson change")
		}
		return s.resolve(ctx, request, models.ChangeRequestApproved, byAdminID, nil)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateSchool(ctx, schoolID)
	}
	s.emitAudit(ctx, schoolID, byAdminID, models.AuditActionRequestApprove, request)
	return request, nil
}

func (s *ChangeRequestService) loadRequest(ctx context.Context, id, schoolID string) (*models.ScheduleChangeRequest, error) {
	request, err := s.repo.FindByID(ctx, id, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}
	return request, nil
}

func (s *ChangeRequestService) resolve(ctx context.Context, request *models.ScheduleChangeRequest, status models.ChangeRequestStatus, resolvedBy string, notes *string) error {
	now := time.Now().UTC()
	err := s.repo.Resolve(ctx, repository.ResolveChangeRequestParams{
		ID:         request.ID,
		SchoolID:   request.SchoolID,
		Status:     status,
		ResolvedBy: resolvedBy,
		ResolvedAt: now,
		AdminNotes: notes,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorizedTransition, "request was resolved concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update change request")
	}
	request.Status = status
	request.ResolvedBy = &resolvedBy
	request.ResolvedAt = &now
	if notes != nil {
		request.AdminNotes = notes
	}
	return nil
}

func (s *ChangeRequestService) emitAudit(ctx context.Context, schoolID, actorID, action string, request *models.ScheduleChangeRequest) {
	if s.audit == nil || request == nil {
		return
	}
	payload, _ := json.Marshal(request)
	log := &models.AuditLog{
		SchoolID:   schoolID,
		UserID:     &actorID,
		Action:     action,
		Resource:   "schedule_change_request",
		ResourceID: &request.ID,
		NewValues:  payload,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
