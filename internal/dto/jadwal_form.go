package dto

import (
	"time"

	"github.com/noah-isme/sma-jadwal-mapel/internal/catalog"
	"github.com/noah-isme/sma-jadwal-mapel/internal/jadwal"
	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
)

// OpenFormRequest starts a schedule form. Edit mode carries the stored entry.
type OpenFormRequest struct {
	Mode       string    `json:"mode" validate:"required,oneof=create edit"`
	ClassID    models.ID `json:"classId" validate:"required_if=Mode edit"`
	ScheduleID models.ID `json:"scheduleId" validate:"required_if=Mode edit"`
	DayID      models.ID `json:"dayId" validate:"required_if=Mode edit"`
	SlotID     models.ID `json:"slotId" validate:"required_if=Mode edit"`
	OfferingID models.ID `json:"offeringId"`
	TeacherID  models.ID `json:"teacherId"`
}

// SelectClassRequest changes the form's class. An empty class clears the selection.
type SelectClassRequest struct {
	ClassID models.ID `json:"classId"`
	Refresh bool      `json:"refresh"`
}

// SetFieldRequest updates one column of a draft row.
type SetFieldRequest struct {
	Field string    `json:"field" validate:"required,oneof=time_slot_id offering_id teacher_id"`
	Value models.ID `json:"value"`
}

// RowView is one draft row as rendered by the form.
type RowView struct {
	Index      int          `json:"index"`
	SlotID     models.ID    `json:"slotId"`
	Range      string       `json:"range,omitempty"`
	Category   string       `json:"category"`
	OfferingID models.ID    `json:"offeringId"`
	TeacherID  models.ID    `json:"teacherId"`
	State      jadwal.State `json:"state"`
}

// DayView groups the rows of one active day with its KBM capacity.
type DayView struct {
	ID       models.ID       `json:"id"`
	Name     string          `json:"name"`
	Rows     []RowView       `json:"rows"`
	Capacity jadwal.Capacity `json:"capacity"`
}

// FormView is the full state of a form session.
type FormView struct {
	ID           string               `json:"id"`
	Mode         jadwal.Mode          `json:"mode"`
	ScheduleID   models.ID            `json:"scheduleId,omitempty"`
	ClassID      models.ID            `json:"classId"`
	Loading      bool                 `json:"loading"`
	Availability catalog.Availability `json:"availability"`
	Days         []DayView            `json:"days"`
	Offerings    []models.Offering    `json:"offerings"`
	UnknownDays  []models.ID          `json:"unknownDays,omitempty"`
	Error        *jadwal.FormError    `json:"error,omitempty"`
	Submitted    bool                 `json:"submitted"`
	Result       string               `json:"result,omitempty"`
	ExpiresAt    time.Time            `json:"expiresAt"`
}

// RowOptionsView lists what a row's selectors may offer.
type RowOptionsView struct {
	Slots            []jadwal.SlotOption      `json:"slots"`
	Offerings        []models.Offering        `json:"offerings"`
	Teachers         []models.TeacherOffering `json:"teachers"`
	OfferingsEnabled bool                     `json:"offeringsEnabled"`
	TeachersEnabled  bool                     `json:"teachersEnabled"`
}

// PreviewView is the payload that submit would send.
type PreviewView struct {
	Items    []models.SubmissionItem `json:"jadwal"`
	Explicit int                     `json:"explicit"`
	Backfill int                     `json:"backfill"`
	Dropped  []jadwal.DroppedRow     `json:"-"`
}

// SubmitView reports a successful submission.
type SubmitView struct {
	Message string   `json:"message"`
	Items   int      `json:"items"`
	Form    FormView `json:"form"`
}

// ExportFile is a rendered preview attachment.
type ExportFile struct {
	ContentType string
	Filename    string
	Body        []byte
}
