package catalog

import (
	"sort"
	"strings"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
)

// Availability reports which reference lists loaded. A false flag keeps the
// dependent selector disabled.
type Availability struct {
	Days      bool `json:"days"`
	Slots     bool `json:"slots"`
	Offerings bool `json:"offerings"`
	Teachers  bool `json:"teachers"`
}

// Ready reports whether every list needed to edit rows is present.
func (a Availability) Ready() bool {
	return a.Days && a.Slots && a.Offerings && a.Teachers
}

// Catalog is a read-only snapshot of reference lists for one class, stored as
// entity maps keyed by id with ordered views computed by the selectors below.
type Catalog struct {
	classID      models.ID
	availability Availability

	days     []models.ID
	dayByID  map[models.ID]models.Day
	slotByID map[models.ID]models.TimeSlot
	// slot ids per day, ordered by start time
	slotsByDay map[models.ID][]models.ID

	offerings      []models.ID
	offeringByID   map[models.ID]models.Offering
	teachersByOffr map[models.ID][]models.TeacherOffering

	invalidSlots []models.ID
}

// Lists is the raw input of New.
type Lists struct {
	Days      []models.Day
	Slots     []models.TimeSlot
	Offerings []models.Offering
	Teachers  []models.TeacherOffering
}

// New normalizes raw lists. Slots with start >= end, or without a day, are dropped.
// Offerings and teachers are discarded when classID is unset.
func New(classID models.ID, lists Lists, availability Availability) *Catalog {
	c := &Catalog{
		classID:        classID,
		availability:   availability,
		dayByID:        make(map[models.ID]models.Day, len(lists.Days)),
		slotByID:       make(map[models.ID]models.TimeSlot, len(lists.Slots)),
		slotsByDay:     make(map[models.ID][]models.ID),
		offeringByID:   make(map[models.ID]models.Offering, len(lists.Offerings)),
		teachersByOffr: make(map[models.ID][]models.TeacherOffering),
	}

	for _, day := range lists.Days {
		if day.ID.IsZero() {
			continue
		}
		if _, dup := c.dayByID[day.ID]; dup {
			continue
		}
		c.dayByID[day.ID] = day
		c.days = append(c.days, day.ID)
	}

	for _, slot := range lists.Slots {
		if slot.ID.IsZero() {
			continue
		}
		if slot.DayID.IsZero() || !slot.Valid() {
			c.invalidSlots = append(c.invalidSlots, slot.ID)
			continue
		}
		if _, dup := c.slotByID[slot.ID]; dup {
			continue
		}
		c.slotByID[slot.ID] = slot
		c.slotsByDay[slot.DayID] = append(c.slotsByDay[slot.DayID], slot.ID)
	}
	for day, ids := range c.slotsByDay {
		sort.SliceStable(ids, func(i, j int) bool {
			return models.ShortTime(c.slotByID[ids[i]].Start) < models.ShortTime(c.slotByID[ids[j]].Start)
		})
		c.slotsByDay[day] = ids
	}

	if classID.IsZero() {
		c.availability.Offerings = false
		c.availability.Teachers = false
		return c
	}

	for _, offering := range lists.Offerings {
		if offering.ID.IsZero() {
			continue
		}
		if _, dup := c.offeringByID[offering.ID]; dup {
			continue
		}
		c.offeringByID[offering.ID] = offering
		c.offerings = append(c.offerings, offering.ID)
	}
	for _, teacher := range lists.Teachers {
		if _, ok := c.offeringByID[teacher.OfferingID]; !ok || teacher.ID.IsZero() {
			continue
		}
		c.teachersByOffr[teacher.OfferingID] = append(c.teachersByOffr[teacher.OfferingID], teacher)
	}

	return c
}

// Empty returns a catalog with nothing loaded.
func Empty() *Catalog {
	return New("", Lists{}, Availability{})
}

// ClassID returns the class the catalog was loaded for.
func (c *Catalog) ClassID() models.ID { return c.classID }

// Availability returns the per-list load flags.
func (c *Catalog) Availability() Availability { return c.availability }

// InvalidSlots lists slot ids dropped during normalisation.
func (c *Catalog) InvalidSlots() []models.ID {
	return append([]models.ID(nil), c.invalidSlots...)
}

// Days returns the active days in backend order.
func (c *Catalog) Days() []models.Day {
	out := make([]models.Day, 0, len(c.days))
	for _, id := range c.days {
		out = append(out, c.dayByID[id])
	}
	return out
}

// DayIDs returns the active day ids in backend order.
func (c *Catalog) DayIDs() []models.ID {
	return append([]models.ID(nil), c.days...)
}

// Day looks up an active day.
func (c *Catalog) Day(id models.ID) (models.Day, bool) {
	day, ok := c.dayByID[id]
	return day, ok
}

// Slot looks up any known slot.
func (c *Catalog) Slot(id models.ID) (models.TimeSlot, bool) {
	slot, ok := c.slotByID[id]
	return slot, ok
}

// SlotOnDay looks up a slot and checks that it belongs to day.
func (c *Catalog) SlotOnDay(day, id models.ID) (models.TimeSlot, bool) {
	slot, ok := c.slotByID[id]
	if !ok || slot.DayID != day {
		return models.TimeSlot{}, false
	}
	return slot, true
}

// SlotsForDay returns the day's slots ordered by start time.
func (c *Catalog) SlotsForDay(day models.ID) []models.TimeSlot {
	return c.filterSlots(day, func(models.TimeSlot) bool { return true })
}

// InstructionalSlots returns the day's KBM slots.
func (c *Catalog) InstructionalSlots(day models.ID) []models.TimeSlot {
	return c.filterSlots(day, models.TimeSlot.Instructional)
}

// NonInstructionalSlots returns the day's non-KBM slots.
func (c *Catalog) NonInstructionalSlots(day models.ID) []models.TimeSlot {
	return c.filterSlots(day, func(s models.TimeSlot) bool { return !s.Instructional() })
}

func (c *Catalog) filterSlots(day models.ID, keep func(models.TimeSlot) bool) []models.TimeSlot {
	ids := c.slotsByDay[day]
	out := make([]models.TimeSlot, 0, len(ids))
	for _, id := range ids {
		if slot := c.slotByID[id]; keep(slot) {
			out = append(out, slot)
		}
	}
	return out
}

// Offerings returns the class offerings in backend order.
func (c *Catalog) Offerings() []models.Offering {
	out := make([]models.Offering, 0, len(c.offerings))
	for _, id := range c.offerings {
		out = append(out, c.offeringByID[id])
	}
	return out
}

// Offering looks up an offering of the loaded class.
func (c *Catalog) Offering(id models.ID) (models.Offering, bool) {
	offering, ok := c.offeringByID[models.ID(strings.TrimSpace(id.String()))]
	return offering, ok
}

// TeachersFor returns teachers eligible for an offering.
func (c *Catalog) TeachersFor(offering models.ID) []models.TeacherOffering {
	return append([]models.TeacherOffering(nil), c.teachersByOffr[offering]...)
}

// TeacherEligible reports whether teacher may teach offering.
func (c *Catalog) TeacherEligible(offering, teacher models.ID) bool {
	for _, t := range c.teachersByOffr[offering] {
		if t.ID == teacher {
			return true
		}
	}
	return false
}
