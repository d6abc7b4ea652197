package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
)

// SubmissionRepository persists the schedule submission audit trail.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create stores one audit row.
func (r *SubmissionRepository) Create(ctx context.Context, audit *models.SubmissionAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO jadwal_submission_audits
	(id, session_id, user_id, mode, class_id, schedule_id, explicit_count, backfill_count, dropped_count, conflict_count, outcome, message, payload, created_at)
	VALUES (:id, :session_id, :user_id, :mode, :class_id, :schedule_id, :explicit_count, :backfill_count, :dropped_count, :conflict_count, :outcome, :message, :payload, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, audit); err != nil {
		return fmt.Errorf("create submission audit: %w", err)
	}
	return nil
}

// List returns the newest audit rows matching filter.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionAuditFilter) ([]models.SubmissionAudit, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, session_id, user_id, mode, class_id, schedule_id, explicit_count, backfill_count,
       dropped_count, conflict_count, outcome, message, payload, created_at FROM jadwal_submission_audits`)
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)

	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	var records []models.SubmissionAudit
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list submission audits: %w", err)
	}
	return records, nil
}
