package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/pkg/database"
)

// RosterRepository resolves the directory entities lessons reference:
// teachers, classes, subjects, and rooms. Lookups are tenant-scoped and used
// for referential-integrity checks before placement.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository creates a new roster repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// FindTeacher loads a teacher by id within a school.
func (r *RosterRepository) FindTeacher(ctx context.Context, id, schoolID string) (*models.Teacher, error) {
	const query = `SELECT id, school_id, email, full_name, phone, active, created_at, updated_at FROM teachers WHERE id = $1 AND school_id = $2`
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &teacher, query, id, schoolID); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindClass loads a class by id within a school.
func (r *RosterRepository) FindClass(ctx context.Context, id, schoolID string) (*models.Class, error) {
	const query = `SELECT id, school_id, name, grade, created_at, updated_at FROM classes WHERE id = $1 AND school_id = $2`
	var class models.Class
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &class, query, id, schoolID); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindSubject loads a subject by id within a school.
func (r *RosterRepository) FindSubject(ctx context.Context, id, schoolID string) (*models.Subject, error) {
	const query = `SELECT id, school_id, code, name, created_at, updated_at FROM subjects WHERE id = $1 AND school_id = $2`
	var subject models.Subject
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &subject, query, id, schoolID); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindRoom loads a room by id within a school.
func (r *RosterRepository) FindRoom(ctx context.Context, id, schoolID string) (*models.Room, error) {
	const query = `SELECT id, school_id, name, capacity, created_at, updated_at FROM rooms WHERE id = $1 AND school_id = $2`
	var room models.Room
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &room, query, id, schoolID); err != nil {
		return nil, err
	}
	return &room, nil
}
