package models

import (
	"encoding/json"
	"fmt"
)

// AttendanceStatusKind distinguishes school-wide statuses from school-defined ones.
type AttendanceStatusKind int

const (
	AttendanceStatusGlobal AttendanceStatusKind = iota + 1
	AttendanceStatusCustom
)

// AttendanceStatus is either a global status (status_kehadiran_id) or a
// custom one (status_custom_id), never both.
type AttendanceStatus struct {
	kind AttendanceStatusKind
	id   ID
}

// GlobalStatus builds a global attendance status.
func GlobalStatus(id ID) AttendanceStatus {
	return AttendanceStatus{kind: AttendanceStatusGlobal, id: id}
}

// CustomStatus builds a school-defined attendance status.
func CustomStatus(id ID) AttendanceStatus {
	return AttendanceStatus{kind: AttendanceStatusCustom, id: id}
}

// AttendanceStatusOption is a status as listed by the backend dropdown.
type AttendanceStatusOption struct {
	ID     ID     `json:"id"`
	Name   string `json:"nama_status"`
	Global bool   `json:"is_global"`
}

// Resolve turns a dropdown option into the tagged status.
func (o AttendanceStatusOption) Resolve() AttendanceStatus {
	if o.Global {
		return GlobalStatus(o.ID)
	}
	return CustomStatus(o.ID)
}

// Kind returns the variant; zero means unset.
func (s AttendanceStatus) Kind() AttendanceStatusKind { return s.kind }

// ID returns the wrapped identifier.
func (s AttendanceStatus) ID() ID { return s.id }

// MarshalJSON emits exactly one of the two backend fields.
func (s AttendanceStatus) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case AttendanceStatusGlobal:
		return json.Marshal(struct {
			StatusID ID `json:"status_kehadiran_id"`
		}{s.id})
	case AttendanceStatusCustom:
		return json.Marshal(struct {
			CustomID ID `json:"status_custom_id"`
		}{s.id})
	default:
		return []byte("{}"), nil
	}
}

// UnmarshalJSON accepts either field; both present is ambiguous and rejected.
func (s *AttendanceStatus) UnmarshalJSON(data []byte) error {
	var raw struct {
		StatusID *ID `json:"status_kehadiran_id"`
		CustomID *ID `json:"status_custom_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	global := raw.StatusID != nil && !raw.StatusID.IsZero()
	custom := raw.CustomID != nil && !raw.CustomID.IsZero()
	switch {
	case global && custom:
		return fmt.Errorf("attendance status carries both status_kehadiran_id and status_custom_id")
	case global:
		*s = GlobalStatus(*raw.StatusID)
	case custom:
		*s = CustomStatus(*raw.CustomID)
	default:
		*s = AttendanceStatus{}
	}
	return nil
}
