package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/jobs"
)

type submissionAuditRepository interface {
	Create(ctx context.Context, audit *models.SubmissionAudit) error
	List(ctx context.Context, filter models.SubmissionAuditFilter) ([]models.SubmissionAudit, error)
}

// AuditServiceConfig configures the background writer.
type AuditServiceConfig struct {
	Workers      int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
}

// AuditService writes submission audits off the request path.
type AuditService struct {
	repo   submissionAuditRepository
	queue  *jobs.Queue[models.SubmissionAudit]
	logger *zap.Logger
}

// NewAuditService constructs the service. A nil repo yields a no-op recorder.
func NewAuditService(repo submissionAuditRepository, cfg AuditServiceConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{repo: repo, logger: logger}
	if repo == nil {
		return svc
	}
	svc.queue = jobs.New("submission-audit", svc.handle, jobs.Config[models.SubmissionAudit]{
		Workers:      cfg.Workers,
		MaxRetries:   cfg.MaxRetries,
		Backoff:      cfg.RetryDelay,
		DrainTimeout: cfg.DrainTimeout,
		Logger:       logger,
		OnGiveUp: func(job jobs.Job[models.SubmissionAudit], err error) {
			logger.Error("submission audit dropped",
				zap.String("audit_id", job.ID),
				zap.String("form_session", job.Payload.SessionID),
				zap.String("outcome", job.Payload.Outcome),
				zap.Error(err))
		},
	})
	return svc
}

// Start launches the workers.
func (s *AuditService) Start(ctx context.Context) {
	if s == nil || s.queue == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop flushes queued audits and waits for the workers.
func (s *AuditService) Stop() {
	if s == nil || s.queue == nil {
		return
	}
	s.queue.Stop()
}

// Record enqueues an audit row. Failures are logged and never reach the caller.
func (s *AuditService) Record(audit models.SubmissionAudit) {
	if s == nil || s.queue == nil {
		return
	}
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	if err := s.queue.Submit(audit.ID, audit); err != nil {
		s.logger.Warn("submission audit not queued", zap.String("audit_id", audit.ID), zap.Error(err))
	}
}

// List returns recent audits.
func (s *AuditService) List(ctx context.Context, filter models.SubmissionAuditFilter) ([]models.SubmissionAudit, error) {
	if s == nil || s.repo == nil {
		return []models.SubmissionAudit{}, nil
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list submission audits")
	}
	if items == nil {
		items = []models.SubmissionAudit{}
	}
	return items, nil
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job[models.SubmissionAudit]) error {
	audit := job.Payload
	return s.repo.Create(ctx, &audit)
}
