package models

import "strings"

// CategoryKBM marks an instructional (Kegiatan Belajar Mengajar) time slot.
// Every other category (Istirahat, Upacara, ...) is non-instructional.
const CategoryKBM = "KBM"

// Class is an entry of the class selector.
type Class struct {
	ID   ID     `json:"id"`
	Name string `json:"nama_kelas"`
}

// Day is a school day active for a class.
type Day struct {
	ID   ID     `json:"id"`
	Name string `json:"nama_hari"`
}

// TimeSlot is a bell period owned by exactly one day.
type TimeSlot struct {
	ID       ID     `json:"id"`
	DayID    ID     `json:"hari_id"`
	Start    string `json:"jam_mulai"`
	End      string `json:"jam_selesai"`
	Category string `json:"kategori_waktu"`
}

// Instructional reports whether the slot is a KBM slot.
func (s TimeSlot) Instructional() bool {
	return IsInstructional(s.Category)
}

// Range renders the slot as "07:00-07:45".
func (s TimeSlot) Range() string {
	return ShortTime(s.Start) + "-" + ShortTime(s.End)
}

// Valid checks start < end. Times compare lexically once normalised to HH:MM.
func (s TimeSlot) Valid() bool {
	start, end := ShortTime(s.Start), ShortTime(s.End)
	return start != "" && end != "" && start < end
}

// Offering is a subject taught to one class in the active term.
type Offering struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
}

// TeacherOffering links a teacher to an offering they may teach.
type TeacherOffering struct {
	ID         ID     `json:"id"`
	Name       string `json:"nama_guru"`
	OfferingID ID     `json:"offering_id"`
}

// IsInstructional treats the category case-insensitively.
func IsInstructional(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), CategoryKBM)
}

// ShortTime trims "07:00:00" to "07:00" and zero-pads "7:00".
func ShortTime(raw string) string {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return raw
	}
	hour, minute := parts[0], parts[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + minute
}
