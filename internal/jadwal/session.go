package jadwal

import (
	"time"

	"github.com/noah-isme/sma-jadwal-mapel/internal/catalog"
	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	"github.com/noah-isme/sma-jadwal-mapel/internal/occupancy"
)

// Mode selects between creating a batch and editing one existing entry.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeCreate || m == ModeEdit }

// LoadKey identifies one class selection. Responses carrying an older key are discarded.
type LoadKey struct {
	ClassID    models.ID
	Generation uint64
}

// EditTarget is the stored entry an edit session was opened for.
type EditTarget struct {
	ScheduleID models.ID
	DayID      models.ID
	SlotID     models.ID
}

// FormError is a user-facing error that disappears after ExpiresAt.
type FormError struct {
	Messages  []string  `json:"messages"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session is the server-side state of one open schedule form.
type Session struct {
	ID        string
	OwnerID   string
	Scope     string
	Mode      Mode
	Edit      *EditTarget
	ClassID   models.ID
	LoadKey   LoadKey
	Loading   bool
	Catalog   *catalog.Catalog
	Occupancy *occupancy.Index
	Draft     Draft
	LastError *FormError

	Submitting bool
	Submitted  bool
	Result     *models.SubmitResult

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Env returns the reference data the session's rows are validated against.
func (s *Session) Env() Env {
	return Env{Catalog: s.Catalog, Occupancy: s.Occupancy}
}

// Expired reports whether the session outlived its TTL.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ActiveError returns the last error unless it has expired.
func (s *Session) ActiveError(now time.Time) *FormError {
	if s.LastError == nil || !now.Before(s.LastError.ExpiresAt) {
		return nil
	}
	return s.LastError
}

// Clone returns a shallow copy. Catalog, Occupancy and Draft are immutable
// values and may be shared.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Edit != nil {
		edit := *s.Edit
		cp.Edit = &edit
	}
	if s.LastError != nil {
		fe := *s.LastError
		fe.Messages = append([]string(nil), s.LastError.Messages...)
		cp.LastError = &fe
	}
	return &cp
}
