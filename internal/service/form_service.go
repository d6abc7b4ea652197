package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-jadwal-mapel/internal/catalog"
	"github.com/noah-isme/sma-jadwal-mapel/internal/dto"
	"github.com/noah-isme/sma-jadwal-mapel/internal/jadwal"
	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	"github.com/noah-isme/sma-jadwal-mapel/internal/occupancy"
	"github.com/noah-isme/sma-jadwal-mapel/internal/upstream"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/export"
)

type catalogLoader interface {
	ListClasses(ctx context.Context, scope string) ([]models.Class, error)
	LoadForClass(ctx context.Context, scope string, classID models.ID) (*catalog.Catalog, error)
	Refresh(ctx context.Context, scope string) error
}

type occupancyBuilder interface {
	Build(ctx context.Context, classID models.ID, days []models.ID) (*occupancy.Index, error)
}

type scheduleWriter interface {
	CreateSchedules(ctx context.Context, items []models.SubmissionItem) (*models.SubmitResult, error)
	UpdateSchedule(ctx context.Context, scheduleID models.ID, item models.SubmissionItem) (*models.SubmitResult, error)
}

type formSessionRepository interface {
	Create(ctx context.Context, session *jadwal.Session) error
	Get(ctx context.Context, id string) (*jadwal.Session, error)
	Update(ctx context.Context, session *jadwal.Session) error
	Delete(ctx context.Context, id string) error
	Sweep(now time.Time) int
	Len() int
}

type submissionRecorder interface {
	Record(audit models.SubmissionAudit)
}

// Preview formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

// FormServiceConfig tunes session lifetime.
type FormServiceConfig struct {
	SessionTTL time.Duration
	ErrorTTL   time.Duration
}

// FormService runs schedule form sessions: class selection, row edits, preview and submit.
type FormService struct {
	loader    catalogLoader
	builder   occupancyBuilder
	writer    scheduleWriter
	sessions  formSessionRepository
	audit     submissionRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       FormServiceConfig
	exporters map[string]export.Renderer
	locks     *sessionLocks
	now       func() time.Time
}

// NewFormService wires the form service.
func NewFormService(
	loader catalogLoader,
	builder occupancyBuilder,
	writer scheduleWriter,
	sessions formSessionRepository,
	audit submissionRecorder,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg FormServiceConfig,
) *FormService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.ErrorTTL <= 0 {
		cfg.ErrorTTL = 5 * time.Second
	}
	return &FormService{
		loader:    loader,
		builder:   builder,
		writer:    writer,
		sessions:  sessions,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		exporters: map[string]export.Renderer{
			FormatCSV: export.NewCSVExporter(),
			FormatPDF: &export.PDFExporter{Widths: []float64{35, 35, 35, 70, 60, 42}},
		},
		locks:     newSessionLocks(),
		now:       time.Now,
	}
}

// ListClasses returns the class selector options.
func (s *FormService) ListClasses(ctx context.Context, principal models.Principal) ([]models.Class, error) {
	classes, err := s.loader.ListClasses(upstream.WithToken(ctx, principal.Token), principal.Scope())
	if err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []models.Class{}
	}
	return classes, nil
}

// Open starts a form session. A class in the request is selected right away.
func (s *FormService) Open(ctx context.Context, principal models.Principal, req dto.OpenFormRequest) (*dto.FormView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid form payload")
	}

	now := s.now().UTC()
	session := &jadwal.Session{
		ID:        uuid.NewString(),
		OwnerID:   principal.UserID,
		Scope:     principal.Scope(),
		Mode:      jadwal.Mode(req.Mode),
		Catalog:   catalog.Empty(),
		Draft:     jadwal.NewDraft(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if session.Mode == jadwal.ModeEdit {
		session.Edit = &jadwal.EditTarget{ScheduleID: req.ScheduleID, DayID: req.DayID, SlotID: req.SlotID}
		session.Draft = jadwal.DraftOf(req.DayID, jadwal.Entry{
			SlotID:     req.SlotID,
			OfferingID: req.OfferingID,
			TeacherID:  req.TeacherID,
		})
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.SetActiveSessions(s.sessions.Len())
	s.logger.Info("form session opened",
		zap.String("form_session", session.ID),
		zap.String("user_id", principal.UserID),
		zap.String("mode", string(session.Mode)))

	if !req.ClassID.IsZero() {
		return s.SelectClass(ctx, principal, session.ID, dto.SelectClassRequest{ClassID: req.ClassID})
	}
	view := s.view(session)
	return &view, nil
}

// Get returns the current state of a session.
func (s *FormService) Get(ctx context.Context, principal models.Principal, id string) (*dto.FormView, error) {
	session, err := s.read(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	view := s.view(session)
	return &view, nil
}

// Discard deletes a session. A session whose submit is in flight is kept
// until the backend answers.
func (s *FormService) Discard(ctx context.Context, principal models.Principal, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()
	session, err := s.read(ctx, principal, id)
	if err != nil && !errors.Is(err, appErrors.ErrSessionExpired) {
		return err
	}
	if err == nil && session.Submitting {
		return appErrors.Clone(appErrors.ErrConflict, "Jadwal sedang disimpan.")
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.SetActiveSessions(s.sessions.Len())
	return nil
}

// SelectClass switches the session to a class and loads its catalog and
// occupancy. Loads run outside the session lock; a response that arrives
// after a newer selection is discarded with ErrStaleResponse.
func (s *FormService) SelectClass(ctx context.Context, principal models.Principal, id string, req dto.SelectClassRequest) (*dto.FormView, error) {
	classID := models.ID(strings.TrimSpace(req.ClassID.String()))

	var (
		key  jadwal.LoadKey
		memo *occupancy.Index
	)
	session, err := s.mutate(ctx, principal, id, func(session *jadwal.Session) error {
		if session.Submitting {
			return appErrors.Clone(appErrors.ErrConflict, "Jadwal sedang disimpan.")
		}
		if session.Mode == jadwal.ModeEdit && !session.ClassID.IsZero() && session.ClassID != classID {
			return appErrors.Clone(appErrors.ErrValidation, "kelas tidak dapat diganti saat mengubah jadwal")
		}
		if session.ClassID == classID && !req.Refresh {
			memo = session.Occupancy
		}
		if session.ClassID != classID {
			session.Catalog = catalog.Empty()
			session.Occupancy = nil
			if session.Mode == jadwal.ModeCreate {
				session.Draft = jadwal.NewDraft()
			}
		}
		session.ClassID = classID
		session.LoadKey = jadwal.LoadKey{ClassID: classID, Generation: session.LoadKey.Generation + 1}
		session.Loading = !classID.IsZero()
		key = session.LoadKey
		return nil
	})
	if err != nil {
		return nil, err
	}
	if classID.IsZero() {
		view := s.view(session)
		return &view, nil
	}

	cat, occ, loadErr := s.load(ctx, principal, classID, memo, req.Refresh)

	session, err = s.mutate(ctx, principal, id, func(session *jadwal.Session) error {
		if session.LoadKey != key {
			return appErrors.ErrStaleResponse
		}
		session.Catalog = cat
		session.Occupancy = occ
		session.Loading = false
		if session.Mode == jadwal.ModeEdit {
			s.seedEdit(session)
		}
		if loadErr != nil {
			s.setError(session, []string{"Sebagian data gagal dimuat. Pilihan yang terkait dinonaktifkan."})
		}
		return nil
	})
	if errors.Is(err, appErrors.ErrStaleResponse) {
		s.metrics.RecordStaleResponse()
		s.logger.Debug("discarding stale class load",
			zap.String("form_session", id),
			zap.String("class_id", classID.String()),
			zap.Uint64("generation", key.Generation))
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if loadErr != nil {
		s.logger.Warn("class data partially loaded",
			zap.String("form_session", id),
			zap.String("class_id", classID.String()),
			zap.Error(loadErr))
	}
	view := s.view(session)
	return &view, nil
}

func (s *FormService) load(ctx context.Context, principal models.Principal, classID models.ID, memo *occupancy.Index, refresh bool) (*catalog.Catalog, *occupancy.Index, error) {
	ctx = upstream.WithToken(ctx, principal.Token)
	if refresh {
		if err := s.loader.Refresh(ctx, principal.Scope()); err != nil {
			s.logger.Warn("catalog cache refresh failed", zap.String("scope", principal.Scope()), zap.Error(err))
		}
	}
	cat, catErr := s.loader.LoadForClass(ctx, principal.Scope(), classID)
	if cat == nil {
		cat = catalog.Empty()
	}
	days := cat.DayIDs()
	if memo.Matches(occupancy.NewKey(classID, days)) && len(memo.UnknownDays()) == 0 {
		return cat, memo, catErr
	}
	occ, occErr := s.builder.Build(ctx, classID, days)
	return cat, occ, errors.Join(catErr, occErr)
}

// seedEdit derives categories for the edited row and frees the stored entry's
// own slot so it stays selectable.
func (s *FormService) seedEdit(session *jadwal.Session) {
	if session.Edit == nil {
		return
	}
	day := session.Edit.DayID
	rows := session.Draft.Rows(day)
	for i, row := range rows {
		if row.SlotID.IsZero() || row.Category != "" {
			continue
		}
		if slot, ok := session.Catalog.SlotOnDay(day, row.SlotID); ok {
			rows[i].Category = slot.Category
		}
	}
	session.Draft = jadwal.DraftOf(day, rows...)
	session.Occupancy = session.Occupancy.Release(day, session.Edit.SlotID)
}

// AddRow appends an empty row to a day.
func (s *FormService) AddRow(ctx context.Context, principal models.Principal, id string, day models.ID) (*dto.FormView, error) {
	session, err := s.mutate(ctx, principal, id, func(session *jadwal.Session) error {
		if err := s.editable(session); err != nil {
			return err
		}
		if session.Mode == jadwal.ModeEdit {
			return appErrors.Clone(appErrors.ErrValidation, "mode ubah hanya untuk satu jadwal")
		}
		draft, err := session.Draft.AddRow(day, session.Env())
		if err != nil {
			return s.reject(session, err)
		}
		session.Draft = draft
		return nil
	})
	return s.viewOf(session, err)
}

// RemoveRow deletes a row from a day.
func (s *FormService) RemoveRow(ctx context.Context, principal models.Principal, id string, day models.ID, index int) (*dto.FormView, error) {
	session, err := s.mutate(ctx, principal, id, func(session *jadwal.Session) error {
		if err := s.editable(session); err != nil {
			return err
		}
		if session.Mode == jadwal.ModeEdit {
			return appErrors.Clone(appErrors.ErrValidation, "mode ubah hanya untuk satu jadwal")
		}
		draft, err := session.Draft.RemoveRow(day, index)
		if err != nil {
			return s.reject(session, err)
		}
		session.Draft = draft
		return nil
	})
	return s.viewOf(session, err)
}

// SetField changes one column of a row.
func (s *FormService) SetField(ctx context.Context, principal models.Principal, id string, day models.ID, index int, req dto.SetFieldRequest) (*dto.FormView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid field payload")
	}
	session, err := s.mutate(ctx, principal, id, func(session *jadwal.Session) error {
		if err := s.editable(session); err != nil {
			return err
		}
		if session.Mode == jadwal.ModeEdit && session.Edit != nil && day != session.Edit.DayID {
			return appErrors.Clone(appErrors.ErrValidation, "hari tidak dapat diganti saat mengubah jadwal")
		}
		draft, err := session.Draft.SetField(day, index, jadwal.Field(req.Field), req.Value.String(), session.Env())
		if err != nil {
			return s.reject(session, err)
		}
		session.Draft = draft
		return nil
	})
	return s.viewOf(session, err)
}

// RowOptions lists slots with their verdicts plus offerings and teachers for one row.
func (s *FormService) RowOptions(ctx context.Context, principal models.Principal, id string, day models.ID, index int) (*dto.RowOptionsView, error) {
	session, err := s.read(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	rows := session.Draft.Rows(day)
	if index < 0 || index >= len(rows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, jadwal.ReasonRowNotFound.Label())
	}
	cat := session.Catalog
	if cat == nil {
		cat = catalog.Empty()
	}
	row := rows[index]
	availability := cat.Availability()
	offeringsEnabled := availability.Offerings && (row.Category == "" || row.Instructional())
	view := &dto.RowOptionsView{
		Slots:            jadwal.Options(day, rows, session.Env(), index),
		Offerings:        []models.Offering{},
		Teachers:         []models.TeacherOffering{},
		OfferingsEnabled: offeringsEnabled,
		TeachersEnabled:  offeringsEnabled && availability.Teachers && !row.OfferingID.IsZero(),
	}
	if view.OfferingsEnabled {
		view.Offerings = cat.Offerings()
	}
	if view.TeachersEnabled {
		view.Teachers = cat.TeachersFor(row.OfferingID)
	}
	return view, nil
}

// Preview assembles the submission without sending it.
func (s *FormService) Preview(ctx context.Context, principal models.Principal, id string) (*dto.PreviewView, error) {
	session, err := s.read(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	sub, err := s.assemble(session)
	if err != nil {
		return nil, err
	}
	return &dto.PreviewView{Items: sub.Items, Explicit: sub.Explicit, Backfill: sub.Backfill, Dropped: sub.Dropped}, nil
}

// Export renders the preview as CSV or PDF.
func (s *FormService) Export(ctx context.Context, principal models.Principal, id, format string) (*dto.ExportFile, error) {
	session, err := s.read(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	sub, err := s.assemble(session)
	if err != nil {
		return nil, err
	}
	renderer, ok := s.exporters[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	body, err := renderer.Render(previewDataset(session, sub))
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to render preview")
	}
	return &dto.ExportFile{
		ContentType: renderer.ContentType(),
		Filename:    fmt.Sprintf("jadwal-kelas-%s.%s", session.ClassID, renderer.Extension()),
		Body:        body,
	}, nil
}

// Submit assembles the draft and sends it to the backend. There is no retry;
// the outcome is stored on the session and audited.
func (s *FormService) Submit(ctx context.Context, principal models.Principal, id string) (*dto.SubmitView, error) {
	var (
		sub  jadwal.Submission
		mode jadwal.Mode
		edit jadwal.EditTarget
	)
	session, err := s.mutate(ctx, principal, id, func(session *jadwal.Session) error {
		if err := s.editable(session); err != nil {
			return err
		}
		assembled, err := s.assemble(session)
		if err != nil {
			s.setError(session, jadwal.Messages(err))
			return err
		}
		sub = assembled
		mode = session.Mode
		if session.Edit != nil {
			edit = *session.Edit
		}
		session.Submitting = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = upstream.WithToken(ctx, principal.Token)
	var (
		result  *models.SubmitResult
		callErr error
		payload interface{}
	)
	if mode == jadwal.ModeEdit {
		payload = sub.Items[0]
		result, callErr = s.writer.UpdateSchedule(ctx, edit.ScheduleID, sub.Items[0])
	} else {
		payload = models.CreateSchedulePayload{Items: sub.Items}
		result, callErr = s.writer.CreateSchedules(ctx, sub.Items)
	}

	outcome := submissionOutcome(callErr)
	s.metrics.RecordSubmission(string(mode), outcome)
	s.recordAudit(session, principal, edit, sub, payload, outcome, result, callErr)

	submitted := session
	session, err = s.mutate(ctx, principal, id, func(session *jadwal.Session) error {
		session.Submitting = false
		if callErr != nil {
			s.setError(session, jadwal.Messages(callErr))
			return nil
		}
		session.Submitted = true
		session.Result = result
		session.LastError = nil
		return nil
	})
	if callErr != nil {
		s.logger.Warn("schedule submission failed",
			zap.String("form_session", id),
			zap.String("outcome", outcome),
			zap.Error(callErr))
		return nil, callErr
	}
	if err != nil {
		// the backend already stored the schedule; report it from the last known state
		s.logger.Warn("submitted session could not be updated",
			zap.String("form_session", id),
			zap.Error(err))
		submitted.Submitting = false
		submitted.Submitted = true
		submitted.Result = result
		submitted.LastError = nil
		session = submitted
	}

	message := "Jadwal berhasil disimpan."
	if result != nil && result.Message != "" {
		message = result.Message
	}
	s.logger.Info("schedule submitted",
		zap.String("form_session", id),
		zap.String("mode", string(mode)),
		zap.Int("items", len(sub.Items)))
	return &dto.SubmitView{Message: message, Items: len(sub.Items), Form: s.view(session)}, nil
}

// RunSweeper removes expired sessions every interval until ctx is done.
func (s *FormService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired()
		}
	}
}

// SweepExpired removes expired sessions once and returns how many were dropped.
func (s *FormService) SweepExpired() int {
	removed := s.sessions.Sweep(s.now())
	s.metrics.SetActiveSessions(s.sessions.Len())
	if removed > 0 {
		s.logger.Info("expired form sessions removed", zap.Int("count", removed))
	}
	return removed
}

func (s *FormService) assemble(session *jadwal.Session) (jadwal.Submission, error) {
	if session.ClassID.IsZero() {
		return jadwal.Submission{}, appErrors.Clone(appErrors.ErrValidation, "Pilih kelas terlebih dahulu.")
	}
	if session.Loading {
		return jadwal.Submission{}, appErrors.Clone(appErrors.ErrConflict, "Data kelas masih dimuat.")
	}
	if session.Occupancy == nil || len(session.Occupancy.UnknownDays()) > 0 {
		return jadwal.Submission{}, appErrors.Clone(appErrors.ErrValidation, "Data jadwal terpakai belum lengkap. Muat ulang kelas.")
	}
	env := session.Env()

	if session.Mode == jadwal.ModeEdit {
		if session.Edit == nil {
			return jadwal.Submission{}, appErrors.Clone(appErrors.ErrInternal, "edit target missing")
		}
		rows := session.Draft.Rows(session.Edit.DayID)
		if len(rows) != 1 {
			return jadwal.Submission{}, appErrors.Clone(appErrors.ErrValidation, "Jadwal yang diubah tidak ditemukan.")
		}
		item, reason, ok := jadwal.ExplicitItem(session.Edit.DayID, rows[0], env)
		if !ok {
			return jadwal.Submission{}, appErrors.Clone(appErrors.ErrValidation, "Jadwal belum lengkap: "+reason+".")
		}
		return jadwal.Submission{Items: []models.SubmissionItem{item}, Explicit: 1, Dropped: []jadwal.DroppedRow{}}, nil
	}

	sub := jadwal.Assemble(session.Draft, env)
	if len(sub.Items) == 0 {
		return sub, appErrors.Clone(appErrors.ErrValidation, "Belum ada jadwal yang dapat disimpan.")
	}
	return sub, nil
}

func (s *FormService) recordAudit(session *jadwal.Session, principal models.Principal, edit jadwal.EditTarget, sub jadwal.Submission, payload interface{}, outcome string, result *models.SubmitResult, callErr error) {
	if s.audit == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("audit payload not encodable", zap.Error(err))
	}
	audit := models.SubmissionAudit{
		SessionID:     session.ID,
		UserID:        principal.UserID,
		Mode:          string(session.Mode),
		ClassID:       session.ClassID.String(),
		ExplicitCount: sub.Explicit,
		BackfillCount: sub.Backfill,
		DroppedCount:  len(sub.Dropped),
		Outcome:       outcome,
		Payload:       raw,
	}
	if !edit.ScheduleID.IsZero() {
		scheduleID := edit.ScheduleID.String()
		audit.ScheduleID = &scheduleID
	}
	var submitErr *models.SubmitError
	if errors.As(callErr, &submitErr) {
		audit.ConflictCount = len(submitErr.Conflicts)
	}
	switch {
	case callErr != nil:
		audit.Message = strings.Join(jadwal.Messages(callErr), "\n")
	case result != nil:
		audit.Message = result.Message
	}
	s.audit.Record(audit)
}

func submissionOutcome(err error) string {
	if err == nil {
		return models.SubmissionOutcomeSuccess
	}
	var submitErr *models.SubmitError
	if errors.As(err, &submitErr) {
		switch {
		case submitErr.HasConflicts() || submitErr.StatusCode == http.StatusConflict:
			return models.SubmissionOutcomeConflict
		case submitErr.StatusCode == http.StatusBadRequest || submitErr.StatusCode == http.StatusUnprocessableEntity:
			return models.SubmissionOutcomeRejected
		}
	}
	return models.SubmissionOutcomeFailed
}

// mutate runs fn on the session under its lock and stores the result. The
// session is stored even when fn fails so ephemeral errors survive.
func (s *FormService) mutate(ctx context.Context, principal models.Principal, id string, fn func(*jadwal.Session) error) (*jadwal.Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.read(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	fnErr := fn(session)

	now := s.now().UTC()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.cfg.SessionTTL)
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, fnErr
}

func (s *FormService) read(ctx context.Context, principal models.Principal, id string) (*jadwal.Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != principal.UserID && !principal.Privileged() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "form session belongs to another user")
	}
	return session, nil
}

func (s *FormService) editable(session *jadwal.Session) error {
	switch {
	case session.Submitted:
		return appErrors.Clone(appErrors.ErrConflict, "Jadwal sudah disimpan. Buka form baru untuk perubahan lain.")
	case session.Submitting:
		return appErrors.Clone(appErrors.ErrConflict, "Jadwal sedang disimpan.")
	case session.ClassID.IsZero():
		return appErrors.Clone(appErrors.ErrValidation, "Pilih kelas terlebih dahulu.")
	case session.Loading:
		return appErrors.Clone(appErrors.ErrConflict, "Data kelas masih dimuat.")
	}
	return nil
}

func (s *FormService) reject(session *jadwal.Session, err error) error {
	var rejection *jadwal.Rejection
	if !errors.As(err, &rejection) {
		return err
	}
	s.metrics.RecordRejection(string(rejection.Reason))
	s.setError(session, []string{rejection.Error()})
	return appErrors.WrapAs(rejection, appErrors.ErrSlotRejected, rejection.Error())
}

func (s *FormService) setError(session *jadwal.Session, messages []string) {
	session.LastError = &jadwal.FormError{Messages: messages, ExpiresAt: s.now().UTC().Add(s.cfg.ErrorTTL)}
}

func (s *FormService) viewOf(session *jadwal.Session, err error) (*dto.FormView, error) {
	if err != nil {
		return nil, err
	}
	view := s.view(session)
	return &view, nil
}

func (s *FormService) view(session *jadwal.Session) dto.FormView {
	cat := session.Catalog
	if cat == nil {
		cat = catalog.Empty()
	}
	env := session.Env()
	view := dto.FormView{
		ID:           session.ID,
		Mode:         session.Mode,
		ClassID:      session.ClassID,
		Loading:      session.Loading,
		Availability: cat.Availability(),
		Days:         []dto.DayView{},
		Offerings:    cat.Offerings(),
		UnknownDays:  session.Occupancy.UnknownDays(),
		Error:        session.ActiveError(s.now().UTC()),
		Submitted:    session.Submitted,
		ExpiresAt:    session.ExpiresAt,
	}
	if session.Edit != nil {
		view.ScheduleID = session.Edit.ScheduleID
	}
	if session.Result != nil {
		view.Result = session.Result.Message
	}
	for _, day := range cat.Days() {
		rows := session.Draft.Rows(day.ID)
		dayView := dto.DayView{
			ID:       day.ID,
			Name:     day.Name,
			Rows:     make([]dto.RowView, 0, len(rows)),
			Capacity: jadwal.ComputeCapacity(day.ID, rows, env),
		}
		for i, row := range rows {
			rv := dto.RowView{
				Index:      i,
				SlotID:     row.SlotID,
				Category:   row.Category,
				OfferingID: row.OfferingID,
				TeacherID:  row.TeacherID,
				State:      row.State(),
			}
			if slot, ok := cat.SlotOnDay(day.ID, row.SlotID); ok {
				rv.Range = slot.Range()
			}
			dayView.Rows = append(dayView.Rows, rv)
		}
		view.Days = append(view.Days, dayView)
	}
	return view
}

func previewDataset(session *jadwal.Session, sub jadwal.Submission) export.Dataset {
	cat := session.Catalog
	if cat == nil {
		cat = catalog.Empty()
	}
	picked := map[string]struct{}{}
	for _, day := range session.Draft.Days() {
		for _, row := range session.Draft.Rows(day) {
			picked[day.String()+"/"+row.SlotID.String()] = struct{}{}
		}
	}

	rows := make([]export.Row, 0, len(sub.Items))
	for _, item := range sub.Items {
		var dayName, span, category, subject, teacher string
		if day, ok := cat.Day(item.DayID); ok {
			dayName = day.Name
		}
		if slot, ok := cat.SlotOnDay(item.DayID, item.SlotID); ok {
			span, category = slot.Range(), slot.Category
		}
		if item.OfferingID != nil {
			if offering, ok := cat.Offering(*item.OfferingID); ok {
				subject = offering.Label
			}
			if item.TeacherID != nil {
				for _, t := range cat.TeachersFor(*item.OfferingID) {
					if t.ID == *item.TeacherID {
						teacher = t.Name
					}
				}
			}
		}
		_, explicit := picked[item.Key()]
		source := "Dipilih"
		if !explicit {
			source = "Otomatis"
		}
		rows = append(rows, export.Row{
			Cells: []string{dayName, span, category, subject, teacher, source},
			Muted: !explicit,
		})
	}
	return export.Dataset{
		Title:    "Pratinjau Jadwal Mapel",
		Subtitle: fmt.Sprintf("Kelas %s, %d jadwal (%d otomatis Non-KBM)", session.ClassID, len(sub.Items), sub.Backfill),
		Headers:  []string{"Hari", "Jam", "Kategori", "Mapel", "Guru", "Sumber"},
		Rows:     rows,
	}
}

// sessionLocks hands out one mutex per session id.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &sessionLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
