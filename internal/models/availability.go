package models

import "time"

// UnavailabilityBlock is a recurring weekly window during which a teacher is
// explicitly not schedulable. Teachers are available by default; only the
// exceptions are stored.
type UnavailabilityBlock struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime ClockTime `db:"start_minute" json:"start_time"`
	EndTime   ClockTime `db:"end_minute" json:"end_time"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Window returns the block's weekly time window.
func (b UnavailabilityBlock) Window() TimeWindow {
	return TimeWindow{Day: b.DayOfWeek, Start: b.StartTime, End: b.EndTime}
}

// UnavailabilityFilter constrains block listing queries.
type UnavailabilityFilter struct {
	SchoolID  string
	TeacherID string
	DayOfWeek DayOfWeek
	ExcludeID string
}
