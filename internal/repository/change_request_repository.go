package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/pkg/database"
)

const changeRequestColumns = "id, school_id, lesson_id, requesting_teacher_id, change_type, proposed_day, proposed_start_minute, proposed_end_minute, proposed_swap_teacher_id, reason, status, admin_notes, resolved_by, resolved_at, created_at, updated_at"

// ResolveChangeRequestParams finalizes a request into a terminal state.
type ResolveChangeRequestParams struct {
	ID         string
	SchoolID   string
	Status     models.ChangeRequestStatus
	ResolvedBy string
	ResolvedAt time.Time
	AdminNotes *string
}

// ChangeRequestRepository persists schedule change requests.
type ChangeRequestRepository struct {
	db *sqlx.DB
}

// NewChangeRequestRepository creates a new change request repository.
func NewChangeRequestRepository(db *sqlx.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

// List returns requests matching the filter, newest first.
func (r *ChangeRequestRepository) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ScheduleChangeRequest, int, error) {
	base := "FROM schedule_change_requests WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}
	var conditions []string

	if filter.LessonID != "" {
		conditions = append(conditions, fmt.Sprintf("lesson_id = $%d", len(args)+1))
		args = append(args, filter.LessonID)
	}
	if filter.RequestingTeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("requesting_teacher_id = $%d", len(args)+1))
		args = append(args, filter.RequestingTeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, string(filter.Status))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", changeRequestColumns, base, size, offset)
	var requests []models.ScheduleChangeRequest
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list change requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count change requests: %w", err)
	}
	return requests, total, nil
}

// FindByID loads a request by id within a school.
func (r *ChangeRequestRepository) FindByID(ctx context.Context, id, schoolID string) (*models.ScheduleChangeRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_change_requests WHERE id = $1 AND school_id = $2", changeRequestColumns)
	var request models.ScheduleChangeRequest
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &request, query, id, schoolID); err != nil {
		return nil, err
	}
	return &request, nil
}

// Create stores a new request in PENDING state.
func (r *ChangeRequestRepository) Create(ctx context.Context, request *models.ScheduleChangeRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.ChangeRequestPending
	}

	const query = `INSERT INTO schedule_change_requests (id, school_id, lesson_id, requesting_teacher_id, change_type, proposed_day, proposed_start_minute, proposed_end_minute, proposed_swap_teacher_id, reason, status, admin_notes, resolved_by, resolved_at, created_at, updated_at) VALUES (:id, :school_id, :lesson_id, :requesting_teacher_id, :change_type, :proposed_day, :proposed_start_minute, :proposed_end_minute, :proposed_swap_teacher_id, :reason, :status, :admin_notes, :resolved_by, :resolved_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, request); err != nil {
		return fmt.Errorf("create change request: %w", err)
	}
	return nil
}

// Resolve moves a PENDING request into a terminal state. The status guard in
// the WHERE clause makes a lost race surface as sql.ErrNoRows instead of a
// silent double transition.
func (r *ChangeRequestRepository) Resolve(ctx context.Context, params ResolveChangeRequestParams) error {
	const query = `UPDATE schedule_change_requests SET status = $1, resolved_by = $2, resolved_at = $3, admin_notes = $4, updated_at = $5 WHERE id = $6 AND school_id = $7 AND status = $8`
	result, err := database.Ext(ctx, r.db).ExecContext(ctx, query,
		string(params.Status), params.ResolvedBy, params.ResolvedAt, params.AdminNotes, time.Now().UTC(),
		params.ID, params.SchoolID, string(models.ChangeRequestPending))
	if err != nil {
		return fmt.Errorf("resolve change request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve change request rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
