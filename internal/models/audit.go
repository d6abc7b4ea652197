package models

import "time"

// Submission outcomes recorded in the audit trail.
const (
	SubmissionOutcomeSuccess  = "SUCCESS"
	SubmissionOutcomeConflict = "CONFLICT"
	SubmissionOutcomeRejected = "REJECTED"
	SubmissionOutcomeFailed   = "FAILED"
)

// SubmissionAudit records one schedule submission attempt.
type SubmissionAudit struct {
	ID            string    `db:"id" json:"id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Mode          string    `db:"mode" json:"mode"`
	ClassID       string    `db:"class_id" json:"class_id"`
	ScheduleID    *string   `db:"schedule_id" json:"schedule_id,omitempty"`
	ExplicitCount int       `db:"explicit_count" json:"explicit_count"`
	BackfillCount int       `db:"backfill_count" json:"backfill_count"`
	DroppedCount  int       `db:"dropped_count" json:"dropped_count"`
	ConflictCount int       `db:"conflict_count" json:"conflict_count"`
	Outcome       string    `db:"outcome" json:"outcome"`
	Message       string    `db:"message" json:"message"`
	Payload       []byte    `db:"payload" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SubmissionAuditFilter narrows audit listings.
type SubmissionAuditFilter struct {
	ClassID string
	UserID  string
	Limit   int
}
