package jadwal

import (
	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
)

// DroppedRow is a draft row left out of a submission because it is incomplete.
type DroppedRow struct {
	DayID  models.ID `json:"hari_id"`
	Index  int       `json:"index"`
	SlotID models.ID `json:"waktu_id,omitempty"`
	Reason string    `json:"reason"`
}

// Submission is the assembled batch plus bookkeeping for previews and audit.
type Submission struct {
	Items    []models.SubmissionItem `json:"jadwal"`
	Explicit int                     `json:"explicit"`
	Backfill int                     `json:"backfill"`
	Dropped  []DroppedRow            `json:"dropped"`
}

const (
	dropNoSlot     = "jam belum dipilih"
	dropNoOffering = "mapel belum dipilih"
	dropStaleSlot  = "jam tidak lagi tersedia"
)

// ExplicitItem converts one row into a submission item. It reports false, with
// a reason, when the row cannot be submitted.
func ExplicitItem(day models.ID, row Entry, env Env) (models.SubmissionItem, string, bool) {
	if row.SlotID.IsZero() {
		return models.SubmissionItem{}, dropNoSlot, false
	}
	slot, ok := env.catalog().SlotOnDay(day, row.SlotID)
	if !ok {
		return models.SubmissionItem{}, dropStaleSlot, false
	}
	item := models.SubmissionItem{DayID: day, SlotID: slot.ID}
	if !slot.Instructional() {
		return item, "", true
	}
	if row.OfferingID.IsZero() {
		return models.SubmissionItem{}, dropNoOffering, false
	}
	item.OfferingID = row.OfferingID.Ptr()
	item.TeacherID = row.TeacherID.Ptr()
	return item, "", true
}

// Assemble turns the draft into the create payload. Per day, in catalog order,
// explicit rows come first in row order, followed by every free Non-KBM slot of
// the day the user did not pick. Days with unknown occupancy get no backfill.
// The result is a function of its inputs only.
func Assemble(d Draft, env Env) Submission {
	cat := env.catalog()
	sub := Submission{Items: []models.SubmissionItem{}, Dropped: []DroppedRow{}}

	for _, day := range cat.DayIDs() {
		rows := d.rows[day]
		picked := make(map[models.ID]struct{}, len(rows))
		emitted := make(map[models.ID]struct{}, len(rows))

		for i, row := range rows {
			if !row.SlotID.IsZero() {
				picked[row.SlotID] = struct{}{}
			}
			item, reason, ok := ExplicitItem(day, row, env)
			if !ok {
				sub.Dropped = append(sub.Dropped, DroppedRow{DayID: day, Index: i, SlotID: row.SlotID, Reason: reason})
				continue
			}
			if _, dup := emitted[item.SlotID]; dup {
				continue
			}
			emitted[item.SlotID] = struct{}{}
			sub.Items = append(sub.Items, item)
			sub.Explicit++
		}

		if !env.Occupancy.Known(day) {
			continue
		}
		for _, slot := range cat.NonInstructionalSlots(day) {
			if _, ok := picked[slot.ID]; ok {
				continue
			}
			if env.Occupancy.Taken(day, slot.ID) {
				continue
			}
			sub.Items = append(sub.Items, models.SubmissionItem{DayID: day, SlotID: slot.ID})
			sub.Backfill++
		}
	}

	return sub
}
