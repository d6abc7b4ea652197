package jadwal

import (
	"fmt"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	"github.com/noah-isme/sma-jadwal-mapel/internal/occupancy"
)

// Reason explains why a slot or a change is not allowed.
type Reason string

const (
	ReasonNone Reason = ""
	// slot taken in the backend; the two variants drive different guidance
	ReasonOccupied       Reason = "OCCUPIED"
	ReasonOccupiedGlobal Reason = "OCCUPIED_GLOBAL"
	// slot already chosen by another row of the same day
	ReasonPickedLocally Reason = "PICKED_LOCALLY"

	ReasonOccupancyUnknown    Reason = "OCCUPANCY_UNKNOWN"
	ReasonUnknownDay          Reason = "UNKNOWN_DAY"
	ReasonUnknownSlot         Reason = "UNKNOWN_SLOT"
	ReasonUnknownOffering     Reason = "UNKNOWN_OFFERING"
	ReasonUnknownField        Reason = "UNKNOWN_FIELD"
	ReasonNonInstructionalRow Reason = "NON_INSTRUCTIONAL_ROW"
	ReasonNoCapacity          Reason = "NO_CAPACITY"
	ReasonRowNotFound         Reason = "ROW_NOT_FOUND"
)

var reasonLabels = map[Reason]string{
	ReasonOccupied:            "sudah terisi",
	ReasonOccupiedGlobal:      "Non-KBM (global)",
	ReasonPickedLocally:       "sudah dipilih",
	ReasonOccupancyUnknown:    "data jadwal terpakai belum dimuat",
	ReasonUnknownDay:          "hari tidak aktif untuk kelas ini",
	ReasonUnknownSlot:         "jam tidak tersedia pada hari ini",
	ReasonUnknownOffering:     "mapel tidak tersedia untuk kelas ini",
	ReasonUnknownField:        "kolom tidak dikenal",
	ReasonNonInstructionalRow: "jam Non-KBM tidak memakai mapel",
	ReasonNoCapacity:          "slot KBM hari ini sudah penuh",
	ReasonRowNotFound:         "baris tidak ditemukan",
}

// Label is the Indonesian text shown next to a disabled option.
func (r Reason) Label() string {
	return reasonLabels[r]
}

// Local reports conflicts with the draft itself rather than the backend.
func (r Reason) Local() bool {
	return r == ReasonPickedLocally
}

// Verdict is the outcome of checking a candidate slot.
type Verdict struct {
	Selectable bool   `json:"selectable"`
	Reason     Reason `json:"reason,omitempty"`
	Label      string `json:"label,omitempty"`
}

func allow() Verdict { return Verdict{Selectable: true} }

func deny(r Reason) Verdict { return Verdict{Reason: r, Label: r.Label()} }

// IsSelectable decides whether candidate may be placed in rows[currentRow] on day.
// A slot is refused when the backend marked it taken or another row of the day
// holds it. The slot the current row already holds stays selectable.
func IsSelectable(day, candidate models.ID, rows []Entry, occ *occupancy.Index, currentRow int) bool {
	if holds(rows, currentRow, candidate) {
		return true
	}
	if occ.Taken(day, candidate) {
		return false
	}
	return !pickedElsewhere(rows, currentRow, candidate)
}

// Check is IsSelectable with a reason, also refusing slots that do not belong
// to day and days whose occupancy could not be loaded.
func Check(day, candidate models.ID, rows []Entry, env Env, currentRow int) Verdict {
	cat := env.catalog()
	if _, ok := cat.Day(day); !ok {
		return deny(ReasonUnknownDay)
	}
	slot, ok := cat.SlotOnDay(day, candidate)
	if !ok {
		return deny(ReasonUnknownSlot)
	}
	if holds(rows, currentRow, candidate) {
		return allow()
	}
	if !env.Occupancy.Known(day) {
		return deny(ReasonOccupancyUnknown)
	}
	if env.Occupancy.Taken(day, candidate) {
		if slot.Instructional() {
			return deny(ReasonOccupied)
		}
		return deny(ReasonOccupiedGlobal)
	}
	if pickedElsewhere(rows, currentRow, candidate) {
		return deny(ReasonPickedLocally)
	}
	return allow()
}

func holds(rows []Entry, index int, slot models.ID) bool {
	return index >= 0 && index < len(rows) && !slot.IsZero() && rows[index].SlotID == slot
}

func pickedElsewhere(rows []Entry, currentRow int, slot models.ID) bool {
	for i, row := range rows {
		if i != currentRow && !row.SlotID.IsZero() && row.SlotID == slot {
			return true
		}
	}
	return false
}

// SlotOption is a time slot as offered to one row, with its verdict.
type SlotOption struct {
	Slot models.TimeSlot `json:"slot"`
	Verdict
}

// Options lists every slot of day with its verdict for rows[currentRow].
func Options(day models.ID, rows []Entry, env Env, currentRow int) []SlotOption {
	slots := env.catalog().SlotsForDay(day)
	out := make([]SlotOption, 0, len(slots))
	for _, slot := range slots {
		out = append(out, SlotOption{Slot: slot, Verdict: Check(day, slot.ID, rows, env, currentRow)})
	}
	return out
}

// CapacityState drives the "add row" affordance.
type CapacityState string

const (
	CapacityFull      CapacityState = "FULL"
	CapacityFirst     CapacityState = "FIRST"
	CapacityRemaining CapacityState = "REMAINING"
	CapacityUnknown   CapacityState = "UNKNOWN"
)

// Capacity is a read-only projection of how many KBM slots of a day are left.
type Capacity struct {
	Total     int           `json:"total"`
	Occupied  int           `json:"occupied"`
	Picked    int           `json:"picked"`
	Remaining int           `json:"remaining"`
	State     CapacityState `json:"state"`
	Label     string        `json:"label"`
}

// CanAdd reports whether another row may be added.
func (c Capacity) CanAdd() bool {
	return c.Remaining > 0 && c.State != CapacityUnknown
}

// ComputeCapacity counts instructional slots of day minus those occupied in the
// backend minus those newly picked in rows (occupied picks are not counted twice).
func ComputeCapacity(day models.ID, rows []Entry, env Env) Capacity {
	kbm := env.catalog().InstructionalSlots(day)
	c := Capacity{Total: len(kbm)}

	if !env.Occupancy.Known(day) {
		c.State = CapacityUnknown
		c.Label = ReasonOccupancyUnknown.Label()
		return c
	}

	instructional := make(map[models.ID]bool, len(kbm))
	for _, slot := range kbm {
		instructional[slot.ID] = true
		if env.Occupancy.Taken(day, slot.ID) {
			c.Occupied++
		}
	}

	seen := make(map[models.ID]struct{}, len(rows))
	for _, row := range rows {
		if row.SlotID.IsZero() || !instructional[row.SlotID] {
			continue
		}
		if _, dup := seen[row.SlotID]; dup {
			continue
		}
		seen[row.SlotID] = struct{}{}
		if !env.Occupancy.Taken(day, row.SlotID) {
			c.Picked++
		}
	}

	c.Remaining = c.Total - c.Occupied - c.Picked
	if c.Remaining < 0 {
		c.Remaining = 0
	}

	switch {
	case c.Remaining == 0:
		c.State = CapacityFull
		c.Label = "Slot KBM penuh"
	case c.Picked == 0:
		c.State = CapacityFirst
		c.Label = "Tambah jadwal"
	default:
		c.State = CapacityRemaining
		c.Label = fmt.Sprintf("Tambah jadwal (sisa %d)", c.Remaining)
	}
	return c
}
