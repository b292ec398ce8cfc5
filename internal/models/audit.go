package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLessonCreate   = "LESSON_CREATE"
	AuditActionLessonUpdate   = "LESSON_UPDATE"
	AuditActionLessonDelete   = "LESSON_DELETE"
	AuditActionRequestSubmit  = "CHANGE_REQUEST_SUBMIT"
	AuditActionRequestApprove = "CHANGE_REQUEST_APPROVE"
	AuditActionRequestReject  = "CHANGE_REQUEST_REJECT"
	AuditActionRequestCancel  = "CHANGE_REQUEST_CANCEL"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
