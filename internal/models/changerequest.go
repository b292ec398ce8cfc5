package models

import "time"

// ChangeRequestType enumerates the supported kinds of schedule change.
type ChangeRequestType string

const (
	ChangeRequestTimeChange ChangeRequestType = "TIME_CHANGE"
	ChangeRequestSwap       ChangeRequestType = "SWAP"
)

// ChangeRequestStatus captures the request workflow states. PENDING is the
// only non-terminal state; the other three are terminal and immutable.
type ChangeRequestStatus string

const (
	ChangeRequestPending  ChangeRequestStatus = "PENDING"
	ChangeRequestApproved ChangeRequestStatus = "APPROVED"
	ChangeRequestRejected ChangeRequestStatus = "REJECTED"
	ChangeRequestCanceled ChangeRequestStatus = "CANCELED"
)

// Terminal reports whether the status permits no further transitions.
func (s ChangeRequestStatus) Terminal() bool {
	return s == ChangeRequestApproved || s == ChangeRequestRejected || s == ChangeRequestCanceled
}

// ScheduleChangeRequest is a teacher-submitted proposal to move an existing
// lesson to a new weekly window (TIME_CHANGE) or hand it to another teacher
// (SWAP). Conflicts are evaluated at approval time, not at submission, since
// the schedule may legitimately change in between.
type ScheduleChangeRequest struct {
	ID                  string              `db:"id" json:"id"`
	SchoolID            string              `db:"school_id" json:"school_id"`
	LessonID            string              `db:"lesson_id" json:"lesson_id"`
	RequestingTeacherID string              `db:"requesting_teacher_id" json:"requesting_teacher_id"`
	ChangeType          ChangeRequestType   `db:"change_type" json:"change_type"`
	ProposedDay         *DayOfWeek          `db:"proposed_day" json:"proposed_day,omitempty"`
	ProposedStartTime   *ClockTime          `db:"proposed_start_minute" json:"proposed_start_time,omitempty"`
	ProposedEndTime     *ClockTime          `db:"proposed_end_minute" json:"proposed_end_time,omitempty"`
	ProposedSwapTeacher *string             `db:"proposed_swap_teacher_id" json:"proposed_swap_teacher_id,omitempty"`
	Reason              string              `db:"reason" json:"reason"`
	Status              ChangeRequestStatus `db:"status" json:"status"`
	AdminNotes          *string             `db:"admin_notes" json:"admin_notes,omitempty"`
	ResolvedBy          *string             `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt          *time.Time          `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updated_at"`
}

// ChangeRequestFilter constrains request listing queries.
type ChangeRequestFilter struct {
	SchoolID            string
	LessonID            string
	RequestingTeacherID string
	Status              ChangeRequestStatus
	Page                int
	PageSize            int
}
