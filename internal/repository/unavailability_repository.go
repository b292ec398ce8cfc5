package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/pkg/database"
)

const unavailabilityColumns = "id, school_id, teacher_id, day_of_week, start_minute, end_minute, notes, created_at, updated_at"

// UnavailabilityRepository persists teacher unavailability blocks.
type UnavailabilityRepository struct {
	db *sqlx.DB
}

// NewUnavailabilityRepository creates a new unavailability repository.
func NewUnavailabilityRepository(db *sqlx.DB) *UnavailabilityRepository {
	return &UnavailabilityRepository{db: db}
}

// List returns a teacher's unavailability blocks, optionally filtered to one
// day and excluding a block id (used when re-checking overlap on update).
func (r *UnavailabilityRepository) List(ctx context.Context, filter models.UnavailabilityFilter) ([]models.UnavailabilityBlock, error) {
	query := fmt.Sprintf("SELECT %s FROM unavailability_blocks WHERE school_id = $1 AND teacher_id = $2", unavailabilityColumns)
	args := []interface{}{filter.SchoolID, filter.TeacherID}

	if filter.DayOfWeek != "" {
		query += fmt.Sprintf(" AND day_of_week = $%d", len(args)+1)
		args = append(args, string(filter.DayOfWeek))
	}
	if filter.ExcludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, filter.ExcludeID)
	}
	query += " ORDER BY day_of_week ASC, start_minute ASC"

	var blocks []models.UnavailabilityBlock
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &blocks, query, args...); err != nil {
		return nil, fmt.Errorf("list unavailability blocks: %w", err)
	}
	return blocks, nil
}

// FindByID loads a block by id within a school.
func (r *UnavailabilityRepository) FindByID(ctx context.Context, id, schoolID string) (*models.UnavailabilityBlock, error) {
	query := fmt.Sprintf("SELECT %s FROM unavailability_blocks WHERE id = $1 AND school_id = $2", unavailabilityColumns)
	var block models.UnavailabilityBlock
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &block, query, id, schoolID); err != nil {
		return nil, err
	}
	return &block, nil
}

// Create stores a new unavailability block.
func (r *UnavailabilityRepository) Create(ctx context.Context, block *models.UnavailabilityBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if block.CreatedAt.IsZero() {
		block.CreatedAt = now
	}
	block.UpdatedAt = now

	const query = `INSERT INTO unavailability_blocks (id, school_id, teacher_id, day_of_week, start_minute, end_minute, notes, created_at, updated_at) VALUES (:id, :school_id, :teacher_id, :day_of_week, :start_minute, :end_minute, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, block); err != nil {
		return fmt.Errorf("create unavailability block: %w", err)
	}
	return nil
}

// Update modifies an unavailability block.
func (r *UnavailabilityRepository) Update(ctx context.Context, block *models.UnavailabilityBlock) error {
	block.UpdatedAt = time.Now().UTC()
	const query = `UPDATE unavailability_blocks SET day_of_week = :day_of_week, start_minute = :start_minute, end_minute = :end_minute, notes = :notes, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, block); err != nil {
		return fmt.Errorf("update unavailability block: %w", err)
	}
	return nil
}

// Delete removes a block by id within a school.
func (r *UnavailabilityRepository) Delete(ctx context.Context, id, schoolID string) error {
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, `DELETE FROM unavailability_blocks WHERE id = $1 AND school_id = $2`, id, schoolID); err != nil {
		return fmt.Errorf("delete unavailability block: %w", err)
	}
	return nil
}
