package models

import (
	"fmt"
	"strings"
)

// OccupancyRecord is one row of /jadwal-mapel/terpakai for a (class, day).
type OccupancyRecord struct {
	ID    ID   `json:"id"`
	Taken bool `json:"terpakai"`
}

// SubmissionItem is the normalized unit sent to the backend.
// Non-instructional items always carry null offering and teacher.
type SubmissionItem struct {
	DayID      ID  `json:"hari_id"`
	SlotID     ID  `json:"waktu_id"`
	OfferingID *ID `json:"offering_id"`
	TeacherID  *ID `json:"guru_id"`
}

// Key identifies an item by its (day, slot) pair.
func (i SubmissionItem) Key() string {
	return string(i.DayID) + "/" + string(i.SlotID)
}

// CreateSchedulePayload is the body of POST /jadwal-mapel.
type CreateSchedulePayload struct {
	Items []SubmissionItem `json:"jadwal"`
}

// ScheduleConflict is one entry of the backend conflict list.
type ScheduleConflict struct {
	Start    string `json:"jam_mulai"`
	End      string `json:"jam_selesai"`
	Category string `json:"kategori"`
	Class    string `json:"kelas,omitempty"`
}

// Global reports a non-instructional slot reserved school-wide rather than by a class.
func (c ScheduleConflict) Global() bool {
	return strings.TrimSpace(c.Class) == ""
}

// SubmitResult is the backend success body.
type SubmitResult struct {
	Message string `json:"msg"`
}

// SubmitError is the backend error body for POST/PUT /jadwal-mapel.
type SubmitError struct {
	StatusCode int                `json:"-"`
	Message    string             `json:"msg"`
	Errors     []string           `json:"errors,omitempty"`
	Detail     []string           `json:"detail,omitempty"`
	Conflicts  []ScheduleConflict `json:"conflicts,omitempty"`
}

// Error implements the error interface.
func (e *SubmitError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case len(e.Conflicts) > 0:
		return fmt.Sprintf("schedule rejected with %d conflict(s)", len(e.Conflicts))
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("schedule rejected with status %d", e.StatusCode)
	}
}

// HasConflicts reports whether the backend returned a structured conflict list.
func (e *SubmitError) HasConflicts() bool {
	return e != nil && len(e.Conflicts) > 0
}
