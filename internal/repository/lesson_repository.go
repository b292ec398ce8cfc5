package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/pkg/database"
)

const lessonColumns = "id, school_id, subject_id, class_id, teacher_id, room_id, day_of_week, start_minute, end_minute, created_at, updated_at"

// LessonRepository provides persistence for lessons. Every query is scoped
// to a school and joins any transaction travelling on the context.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// List returns lessons matching the filter with pagination.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	base := "FROM lessons WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}
	var conditions []string

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, string(filter.DayOfWeek))
	}
	if filter.ExcludeID != "" {
		conditions = append(conditions, fmt.Sprintf("id <> $%d", len(args)+1))
		args = append(args, filter.ExcludeID)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY day_of_week ASC, start_minute ASC LIMIT %d OFFSET %d", lessonColumns, base, size, offset)
	var lessons []models.Lesson
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}
	return lessons, total, nil
}

// FindByID loads a lesson by id within a school.
func (r *LessonRepository) FindByID(ctx context.Context, id, schoolID string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1 AND school_id = $2", lessonColumns)
	var lesson models.Lesson
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &lesson, query, id, schoolID); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListByDay returns all lessons for a school on one day of the week. The
// conflict checker narrows these in memory using interval arithmetic.
func (r *LessonRepository) ListByDay(ctx context.Context, schoolID string, day models.DayOfWeek) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE school_id = $1 AND day_of_week = $2 ORDER BY start_minute ASC", lessonColumns)
	var lessons []models.Lesson
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &lessons, query, schoolID, string(day)); err != nil {
		return nil, fmt.Errorf("list lessons by day: %w", err)
	}
	return lessons, nil
}

// Create stores a new lesson record.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	const query = `INSERT INTO lessons (id, school_id, subject_id, class_id, teacher_id, room_id, day_of_week, start_minute, end_minute, created_at, updated_at) VALUES (:id, :school_id, :subject_id, :class_id, :teacher_id, :room_id, :day_of_week, :start_minute, :end_minute, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update modifies a lesson record.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET subject_id = :subject_id, class_id = :class_id, teacher_id = :teacher_id, room_id = :room_id, day_of_week = :day_of_week, start_minute = :start_minute, end_minute = :end_minute, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson by id within a school.
func (r *LessonRepository) Delete(ctx context.Context, id, schoolID string) error {
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, `DELETE FROM lessons WHERE id = $1 AND school_id = $2`, id, schoolID); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}
