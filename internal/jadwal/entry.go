// Package jadwal holds the Jadwal Mapel form rules: which (day, slot, offering,
// teacher) combinations may be drafted, and how a draft becomes the payload
// sent to the school backend.
package jadwal

import (
	"github.com/noah-isme/sma-jadwal-mapel/internal/catalog"
	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	"github.com/noah-isme/sma-jadwal-mapel/internal/occupancy"
)

// Field names a mutable column of a draft row.
type Field string

const (
	FieldTimeSlot Field = "time_slot_id"
	FieldOffering Field = "offering_id"
	FieldTeacher  Field = "teacher_id"
)

// Entry is one user-authored row of a day's draft.
type Entry struct {
	SlotID     models.ID `json:"time_slot_id"`
	Category   string    `json:"category"`
	OfferingID models.ID `json:"offering_id"`
	TeacherID  models.ID `json:"teacher_id"`
}

// Instructional reports whether the row's slot is KBM.
func (e Entry) Instructional() bool {
	return models.IsInstructional(e.Category)
}

// State is the lifecycle position of an entry.
type State string

const (
	StateEmpty          State = "EMPTY"
	StateSlotChosen     State = "SLOT_CHOSEN"
	StateNeedsOffering  State = "NEEDS_OFFERING"
	StateOfferingChosen State = "OFFERING_CHOSEN"
	StateComplete       State = "COMPLETE"
)

// State derives the entry's lifecycle state.
func (e Entry) State() State {
	switch {
	case e.SlotID.IsZero():
		return StateEmpty
	case e.Category == "":
		return StateSlotChosen
	case !e.Instructional():
		return StateComplete
	case e.OfferingID.IsZero():
		return StateNeedsOffering
	case e.TeacherID.IsZero():
		return StateOfferingChosen
	default:
		return StateComplete
	}
}

// Submittable reports whether the entry yields a submission item.
func (e Entry) Submittable() bool {
	s := e.State()
	return s == StateOfferingChosen || s == StateComplete
}

// Env is the read-only reference data rows are validated against.
type Env struct {
	Catalog   *catalog.Catalog
	Occupancy *occupancy.Index
}

func (env Env) catalog() *catalog.Catalog {
	if env.Catalog == nil {
		return catalog.Empty()
	}
	return env.Catalog
}
