package models

import "time"

// Lesson is one recurring weekly teaching slot for a class within a school.
type Lesson struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	RoomID    *string   `db:"room_id" json:"room_id,omitempty"`
	DayOfWeek DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime ClockTime `db:"start_minute" json:"start_time"`
	EndTime   ClockTime `db:"end_minute" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Window returns the lesson's weekly time window.
func (l Lesson) Window() TimeWindow {
	return TimeWindow{Day: l.DayOfWeek, Start: l.StartTime, End: l.EndTime}
}

// LessonFilter constrains lesson listing queries. SchoolID is mandatory;
// every query is tenant-scoped.
type LessonFilter struct {
	SchoolID  string
	TeacherID string
	ClassID   string
	RoomID    string
	DayOfWeek DayOfWeek
	ExcludeID string
	Page      int
	PageSize  int
}

// PlacementCandidate is the input to conflict checking: a proposed weekly
// placement that may or may not correspond to an existing lesson yet.
type PlacementCandidate struct {
	SchoolID  string    `json:"school_id"`
	TeacherID string    `json:"teacher_id"`
	ClassID   string    `json:"class_id"`
	RoomID    *string   `json:"room_id,omitempty"`
	DayOfWeek DayOfWeek `json:"day_of_week"`
	StartTime ClockTime `json:"start_time"`
	EndTime   ClockTime `json:"end_time"`
}

// Window returns the candidate's weekly time window.
func (p PlacementCandidate) Window() TimeWindow {
	return TimeWindow{Day: p.DayOfWeek, Start: p.StartTime, End: p.EndTime}
}
