package jadwal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
)

// Rejection is returned when a draft operation is refused. The draft the
// operation was called on is left as it was.
type Rejection struct {
	Reason Reason
	DayID  models.ID
	Row    int
	Value  string
}

func (r *Rejection) Error() string {
	msg := r.Reason.Label()
	if r.Value != "" {
		msg = fmt.Sprintf("%s: %s", r.Value, msg)
	}
	return msg
}

func reject(reason Reason, day models.ID, row int, value string) *Rejection {
	return &Rejection{Reason: reason, DayID: day, Row: row, Value: value}
}

// Draft is the per-day ordered list of rows being authored. It is a value:
// every operation returns a new Draft and leaves the receiver untouched.
type Draft struct {
	rows map[models.ID][]Entry
}

// NewDraft returns an empty draft.
func NewDraft() Draft {
	return Draft{rows: map[models.ID][]Entry{}}
}

// DraftOf seeds a draft with rows; used by edit sessions.
func DraftOf(day models.ID, rows ...Entry) Draft {
	d := NewDraft()
	if len(rows) > 0 {
		d.rows[day] = append([]Entry(nil), rows...)
	}
	return d
}

// Rows returns a copy of day's rows.
func (d Draft) Rows(day models.ID) []Entry {
	return append([]Entry(nil), d.rows[day]...)
}

// Days lists days that currently have rows.
func (d Draft) Days() []models.ID {
	out := make([]models.ID, 0, len(d.rows))
	for day, rows := range d.rows {
		if len(rows) > 0 {
			out = append(out, day)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len counts rows across all days.
func (d Draft) Len() int {
	n := 0
	for _, rows := range d.rows {
		n += len(rows)
	}
	return n
}

func (d Draft) with(day models.ID, rows []Entry) Draft {
	next := make(map[models.ID][]Entry, len(d.rows)+1)
	for k, v := range d.rows {
		next[k] = v
	}
	if len(rows) == 0 {
		delete(next, day)
	} else {
		next[day] = rows
	}
	return Draft{rows: next}
}

// AddRow appends an empty row to day when the day still has KBM capacity.
func (d Draft) AddRow(day models.ID, env Env) (Draft, error) {
	if _, ok := env.catalog().Day(day); !ok {
		return d, reject(ReasonUnknownDay, day, -1, day.String())
	}
	rows := d.rows[day]
	capacity := ComputeCapacity(day, rows, env)
	if capacity.State == CapacityUnknown {
		return d, reject(ReasonOccupancyUnknown, day, -1, "")
	}
	if !capacity.CanAdd() {
		return d, reject(ReasonNoCapacity, day, -1, "")
	}
	next := make([]Entry, len(rows), len(rows)+1)
	copy(next, rows)
	next = append(next, Entry{})
	return d.with(day, next), nil
}

// RemoveRow drops row index of day. Later rows shift down by one.
func (d Draft) RemoveRow(day models.ID, index int) (Draft, error) {
	rows := d.rows[day]
	if index < 0 || index >= len(rows) {
		return d, reject(ReasonRowNotFound, day, index, "")
	}
	next := make([]Entry, 0, len(rows)-1)
	next = append(next, rows[:index]...)
	next = append(next, rows[index+1:]...)
	return d.with(day, next), nil
}

// SetField updates one column of row index on day.
//
// Choosing a slot derives the row's category and clears offering and teacher
// when the slot is Non-KBM. Changing the offering always clears the teacher.
// A teacher is kept only if they teach the row's offering.
func (d Draft) SetField(day models.ID, index int, field Field, value string, env Env) (Draft, error) {
	rows := d.rows[day]
	if index < 0 || index >= len(rows) {
		return d, reject(ReasonRowNotFound, day, index, "")
	}
	value = strings.TrimSpace(value)
	id := models.ID(value)
	row := rows[index]
	cat := env.catalog()

	switch field {
	case FieldTimeSlot:
		if id.IsZero() {
			row.SlotID = ""
			row.Category = ""
			break
		}
		verdict := Check(day, id, rows, env, index)
		if !verdict.Selectable {
			return d, reject(verdict.Reason, day, index, value)
		}
		slot, _ := cat.SlotOnDay(day, id)
		row.SlotID = slot.ID
		row.Category = slot.Category
		if !slot.Instructional() {
			row.OfferingID = ""
			row.TeacherID = ""
		}
	case FieldOffering:
		if !id.IsZero() {
			if row.Category != "" && !row.Instructional() {
				return d, reject(ReasonNonInstructionalRow, day, index, value)
			}
			if _, ok := cat.Offering(id); !ok {
				return d, reject(ReasonUnknownOffering, day, index, value)
			}
		}
		row.OfferingID = id
		row.TeacherID = ""
	case FieldTeacher:
		if id.IsZero() || !cat.TeacherEligible(row.OfferingID, id) {
			row.TeacherID = ""
		} else {
			row.TeacherID = id
		}
	default:
		return d, reject(ReasonUnknownField, day, index, string(field))
	}

	next := make([]Entry, len(rows))
	copy(next, rows)
	next[index] = row
	return d.with(day, next), nil
}
