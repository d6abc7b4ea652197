package occupancy

import (
	"sort"
	"strings"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
)

// Key identifies the inputs an Index was built from. Indexes are never reused
// across keys.
type Key struct {
	ClassID models.ID
	Days    string
}

// NewKey builds a key from a class and its active days. Day order and
// duplicates do not affect the signature.
func NewKey(classID models.ID, days []models.ID) Key {
	uniq := make(map[models.ID]struct{}, len(days))
	sig := make([]string, 0, len(days))
	for _, d := range days {
		if d.IsZero() {
			continue
		}
		if _, seen := uniq[d]; seen {
			continue
		}
		uniq[d] = struct{}{}
		sig = append(sig, d.String())
	}
	sort.Strings(sig)
	return Key{ClassID: classID, Days: strings.Join(sig, ",")}
}

// DayIDs returns the days encoded in the signature.
func (k Key) DayIDs() []models.ID {
	if k.Days == "" {
		return nil
	}
	parts := strings.Split(k.Days, ",")
	out := make([]models.ID, len(parts))
	for i, p := range parts {
		out[i] = models.ID(p)
	}
	return out
}

func (k Key) String() string {
	return k.ClassID.String() + "|" + k.Days
}

// Index is an immutable per-day set of slots the backend flagged as taken.
// It never contains a slot the backend did not mark terpakai.
type Index struct {
	key     Key
	taken   map[models.ID]map[models.ID]struct{}
	unknown map[models.ID]struct{}
}

// Empty returns an index with every day of key known and nothing taken.
func Empty(key Key) *Index {
	return &Index{
		key:     key,
		taken:   map[models.ID]map[models.ID]struct{}{},
		unknown: map[models.ID]struct{}{},
	}
}

// FromRecords builds an index from per-day backend records. Days listed in
// failed have unknown occupancy.
func FromRecords(key Key, records map[models.ID][]models.OccupancyRecord, failed []models.ID) *Index {
	ix := Empty(key)
	for day, rows := range records {
		set := make(map[models.ID]struct{})
		for _, r := range rows {
			if r.Taken && !r.ID.IsZero() {
				set[r.ID] = struct{}{}
			}
		}
		ix.taken[day] = set
	}
	for _, day := range failed {
		ix.unknown[day] = struct{}{}
		delete(ix.taken, day)
	}
	return ix
}

// Key returns the inputs the index was built from.
func (ix *Index) Key() Key {
	if ix == nil {
		return Key{}
	}
	return ix.key
}

// Matches reports whether the index was built for key.
func (ix *Index) Matches(key Key) bool {
	return ix != nil && ix.key == key
}

// Known reports whether occupancy for day was loaded.
func (ix *Index) Known(day models.ID) bool {
	if ix == nil {
		return false
	}
	if _, bad := ix.unknown[day]; bad {
		return false
	}
	for _, d := range ix.key.DayIDs() {
		if d == day {
			return true
		}
	}
	return false
}

// Taken reports whether slot is occupied on day.
func (ix *Index) Taken(day, slot models.ID) bool {
	if ix == nil {
		return false
	}
	_, ok := ix.taken[day][slot]
	return ok
}

// TakenSlots returns the occupied slots of day, sorted.
func (ix *Index) TakenSlots(day models.ID) []models.ID {
	if ix == nil {
		return nil
	}
	out := make([]models.ID, 0, len(ix.taken[day]))
	for id := range ix.taken[day] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UnknownDays lists days whose occupancy query failed.
func (ix *Index) UnknownDays() []models.ID {
	if ix == nil {
		return nil
	}
	out := make([]models.ID, 0, len(ix.unknown))
	for id := range ix.unknown {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Release returns a copy of the index without slot on day. Edit sessions use
// it so the entry being edited does not block its own slot.
func (ix *Index) Release(day, slot models.ID) *Index {
	if ix == nil {
		return nil
	}
	cp := &Index{
		key:     ix.key,
		taken:   make(map[models.ID]map[models.ID]struct{}, len(ix.taken)),
		unknown: make(map[models.ID]struct{}, len(ix.unknown)),
	}
	for d, set := range ix.taken {
		next := make(map[models.ID]struct{}, len(set))
		for s := range set {
			if d == day && s == slot {
				continue
			}
			next[s] = struct{}{}
		}
		cp.taken[d] = next
	}
	for d := range ix.unknown {
		cp.unknown[d] = struct{}{}
	}
	return cp
}

// Snapshot renders the index for API responses.
func (ix *Index) Snapshot() map[string][]string {
	out := map[string][]string{}
	if ix == nil {
		return out
	}
	for day := range ix.taken {
		slots := ix.TakenSlots(day)
		ids := make([]string, len(slots))
		for i, s := range slots {
			ids[i] = s.String()
		}
		out[day.String()] = ids
	}
	return out
}
