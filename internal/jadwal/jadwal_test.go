package jadwal

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-jadwal-mapel/internal/catalog"
	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	"github.com/noah-isme/sma-jadwal-mapel/internal/occupancy"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
)

const (
	senin  models.ID = "1"
	selasa models.ID = "2"
	mtk    models.ID = "Matematika-7A"
	ipa    models.ID = "IPA-7A"
)

func seninCatalog() *catalog.Catalog {
	return catalog.New("7", catalog.Lists{
		Days: []models.Day{{ID: senin, Name: "Senin"}, {ID: selasa, Name: "Selasa"}},
		Slots: []models.TimeSlot{
			{ID: "1", DayID: senin, Start: "07:00", End: "07:45", Category: "KBM"},
			{ID: "2", DayID: senin, Start: "07:45", End: "08:30", Category: "KBM"},
			{ID: "3", DayID: senin, Start: "08:30", End: "09:00", Category: "Istirahat"},
			{ID: "4", DayID: selasa, Start: "07:00", End: "07:45", Category: "KBM"},
		},
		Offerings: []models.Offering{{ID: mtk, Label: "Matematika"}, {ID: ipa, Label: "IPA"}},
		Teachers: []models.TeacherOffering{
			{ID: "g1", Name: "Bu Sari", OfferingID: mtk},
			{ID: "g2", Name: "Pak Budi", OfferingID: ipa},
		},
	}, catalog.Availability{Days: true, Slots: true, Offerings: true, Teachers: true})
}

func seninEnv(taken map[models.ID][]models.ID, failed ...models.ID) Env {
	cat := seninCatalog()
	records := map[models.ID][]models.OccupancyRecord{}
	for day, ids := range taken {
		for _, id := range ids {
			records[day] = append(records[day], models.OccupancyRecord{ID: id, Taken: true})
		}
	}
	ix := occupancy.FromRecords(occupancy.NewKey("7", cat.DayIDs()), records, failed)
	return Env{Catalog: cat, Occupancy: ix}
}

func mustDraft(t *testing.T) func(Draft, error) Draft {
	return func(d Draft, err error) Draft {
		t.Helper()
		require.NoError(t, err)
		return d
	}
}

func TestIsSelectableExemptsCurrentRow(t *testing.T) {
	env := seninEnv(map[models.ID][]models.ID{senin: {"1"}})
	rows := []Entry{{SlotID: "1", Category: "KBM"}, {SlotID: "2", Category: "KBM"}}

	assert.True(t, IsSelectable(senin, "1", rows, env.Occupancy, 0), "slot held by the row itself")
	assert.False(t, IsSelectable(senin, "1", rows, env.Occupancy, 1), "occupied in backend")
	assert.False(t, IsSelectable(senin, "2", rows, env.Occupancy, 2), "picked by row 1")
	assert.True(t, IsSelectable(senin, "3", rows, env.Occupancy, 1))
}

func TestCheckReasons(t *testing.T) {
	env := seninEnv(map[models.ID][]models.ID{senin: {"1", "3"}})
	rows := []Entry{{SlotID: "2", Category: "KBM"}, {}}

	cases := []struct {
		name      string
		day, slot models.ID
		row       int
		want      Reason
	}{
		{"occupied kbm", senin, "1", 1, ReasonOccupied},
		{"occupied non-kbm", senin, "3", 1, ReasonOccupiedGlobal},
		{"picked by sibling", senin, "2", 1, ReasonPickedLocally},
		{"slot of another day", senin, "4", 1, ReasonUnknownSlot},
		{"inactive day", "9", "1", 1, ReasonUnknownDay},
		{"own slot", senin, "2", 0, ReasonNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := Check(tc.day, tc.slot, rows, env, tc.row)
			assert.Equal(t, tc.want, v.Reason)
			assert.Equal(t, tc.want == ReasonNone, v.Selectable)
		})
	}
}

func TestCheckRefusesDaysWithUnknownOccupancy(t *testing.T) {
	env := seninEnv(nil, selasa)
	v := Check(selasa, "4", []Entry{{}}, env, 0)
	assert.False(t, v.Selectable)
	assert.Equal(t, ReasonOccupancyUnknown, v.Reason)
}

func TestOptionsListDaySlotsWithVerdicts(t *testing.T) {
	env := seninEnv(map[models.ID][]models.ID{senin: {"1"}})
	opts := Options(senin, []Entry{{}}, env, 0)
	require.Len(t, opts, 3)
	assert.Equal(t, models.ID("1"), opts[0].Slot.ID)
	assert.False(t, opts[0].Selectable)
	assert.Equal(t, "sudah terisi", opts[0].Label)
	assert.True(t, opts[1].Selectable)
	assert.True(t, opts[2].Selectable)
}

func TestCapacity(t *testing.T) {
	env := seninEnv(map[models.ID][]models.ID{senin: {"1"}})

	c := ComputeCapacity(senin, nil, env)
	assert.Equal(t, Capacity{Total: 2, Occupied: 1, Remaining: 1, State: CapacityFirst, Label: "Tambah jadwal"}, c)

	c = ComputeCapacity(senin, []Entry{{SlotID: "2", Category: "KBM"}}, env)
	assert.Equal(t, 0, c.Remaining)
	assert.Equal(t, CapacityFull, c.State)
	assert.False(t, c.CanAdd())

	// picking a non-kbm slot leaves kbm capacity alone
	c = ComputeCapacity(senin, []Entry{{SlotID: "3", Category: "Istirahat"}}, env)
	assert.Equal(t, 1, c.Remaining)
	assert.Equal(t, CapacityFirst, c.State)

	empty := seninEnv(nil)
	c = ComputeCapacity(senin, []Entry{{SlotID: "1", Category: "KBM"}}, empty)
	assert.Equal(t, CapacityRemaining, c.State)
	assert.Equal(t, "Tambah jadwal (sisa 1)", c.Label)
}

func TestCapacityNeverNegative(t *testing.T) {
	env := seninEnv(map[models.ID][]models.ID{senin: {"1", "2"}})
	c := ComputeCapacity(senin, []Entry{{SlotID: "1", Category: "KBM"}, {SlotID: "2", Category: "KBM"}}, env)
	assert.Equal(t, 0, c.Picked, "occupied picks are not counted twice")
	assert.Equal(t, 0, c.Remaining)
}

func TestAddRowRespectsCapacity(t *testing.T) {
	env := seninEnv(map[models.ID][]models.ID{senin: {"1"}})

	d := mustDraft(t)(NewDraft().AddRow(senin, env))
	require.Len(t, d.Rows(senin), 1)
	assert.Equal(t, StateEmpty, d.Rows(senin)[0].State())

	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, "2", env))
	_, err := d.AddRow(senin, env)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonNoCapacity, rej.Reason)

	_, err = d.AddRow("9", env)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonUnknownDay, rej.Reason)
}

func TestAddRowRefusesUnknownOccupancy(t *testing.T) {
	env := seninEnv(nil, selasa)
	_, err := NewDraft().AddRow(selasa, env)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonOccupancyUnknown, rej.Reason)
}

func TestRemoveRowShiftsLaterRows(t *testing.T) {
	env := seninEnv(nil)
	d := mustDraft(t)(NewDraft().AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, "1", env))
	d = mustDraft(t)(d.AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 1, FieldTimeSlot, "2", env))

	next := mustDraft(t)(d.RemoveRow(senin, 0))
	require.Len(t, next.Rows(senin), 1)
	assert.Equal(t, models.ID("2"), next.Rows(senin)[0].SlotID)
	assert.Len(t, d.Rows(senin), 2, "receiver unchanged")

	_, err := next.RemoveRow(senin, 5)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonRowNotFound, rej.Reason)

	gone := mustDraft(t)(next.RemoveRow(senin, 0))
	assert.Empty(t, gone.Days())
}

func TestSetFieldRejectsUnselectableSlotAndKeepsDraft(t *testing.T) {
	env := seninEnv(map[models.ID][]models.ID{senin: {"1"}})
	d := mustDraft(t)(NewDraft().AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, "2", env))

	got, err := d.SetField(senin, 0, FieldTimeSlot, "1", env)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonOccupied, rej.Reason)
	assert.Equal(t, d.Rows(senin), got.Rows(senin))
	assert.Equal(t, models.ID("2"), got.Rows(senin)[0].SlotID)
}

func TestNonInstructionalSlotClearsOfferingAndTeacher(t *testing.T) {
	env := seninEnv(nil)
	d := mustDraft(t)(NewDraft().AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, " 1 ", env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldOffering, string(mtk), env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTeacher, "g1", env))
	require.Equal(t, StateComplete, d.Rows(senin)[0].State())

	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, "3", env))
	row := d.Rows(senin)[0]
	assert.Equal(t, "Istirahat", row.Category)
	assert.True(t, row.OfferingID.IsZero())
	assert.True(t, row.TeacherID.IsZero())
	assert.Equal(t, StateComplete, row.State())

	_, err := d.SetField(senin, 0, FieldOffering, string(mtk), env)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonNonInstructionalRow, rej.Reason)
}

func TestChangingOfferingClearsTeacher(t *testing.T) {
	env := seninEnv(nil)
	d := mustDraft(t)(NewDraft().AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, "1", env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldOffering, string(mtk), env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTeacher, "g1", env))

	d = mustDraft(t)(d.SetField(senin, 0, FieldOffering, string(mtk), env))
	assert.True(t, d.Rows(senin)[0].TeacherID.IsZero(), "even re-selecting the same offering")

	d = mustDraft(t)(d.SetField(senin, 0, FieldTeacher, "g1", env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldOffering, string(ipa), env))
	assert.True(t, d.Rows(senin)[0].TeacherID.IsZero())
	assert.Equal(t, StateOfferingChosen, d.Rows(senin)[0].State())
}

func TestIneligibleTeacherIsCleared(t *testing.T) {
	env := seninEnv(nil)
	d := mustDraft(t)(NewDraft().AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, "1", env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldOffering, string(mtk), env))

	d = mustDraft(t)(d.SetField(senin, 0, FieldTeacher, "g2", env))
	assert.True(t, d.Rows(senin)[0].TeacherID.IsZero())

	d = mustDraft(t)(d.SetField(senin, 0, FieldTeacher, "g1", env))
	assert.Equal(t, models.ID("g1"), d.Rows(senin)[0].TeacherID)
}

func TestSetFieldRejectsUnknownOfferingAndField(t *testing.T) {
	env := seninEnv(nil)
	d := mustDraft(t)(NewDraft().AddRow(senin, env))

	var rej *Rejection
	_, err := d.SetField(senin, 0, FieldOffering, "Fisika-9C", env)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonUnknownOffering, rej.Reason)

	_, err = d.SetField(senin, 0, Field("ruang"), "A1", env)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonUnknownField, rej.Reason)
}

func TestNoTwoRowsShareASlot(t *testing.T) {
	env := seninEnv(nil)
	d := mustDraft(t)(NewDraft().AddRow(senin, env))
	d = mustDraft(t)(d.AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, "1", env))

	_, err := d.SetField(senin, 1, FieldTimeSlot, "1", env)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonPickedLocally, rej.Reason)
	assert.True(t, rej.Reason.Local())
}

func TestAssembleSeninExample(t *testing.T) {
	env := seninEnv(map[models.ID][]models.ID{senin: {"1"}, selasa: {"4"}})
	d := mustDraft(t)(NewDraft().AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, "2", env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldOffering, string(mtk), env))

	sub := Assemble(d, env)

	require.Equal(t, []models.SubmissionItem{
		{DayID: senin, SlotID: "2", OfferingID: mtk.Ptr()},
		{DayID: senin, SlotID: "3"},
	}, sub.Items)
	assert.Equal(t, 1, sub.Explicit)
	assert.Equal(t, 1, sub.Backfill)
	assert.Empty(t, sub.Dropped)

	raw, err := json.Marshal(models.CreateSchedulePayload{Items: sub.Items})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jadwal":[
		{"hari_id":1,"waktu_id":2,"offering_id":"Matematika-7A","guru_id":null},
		{"hari_id":1,"waktu_id":3,"offering_id":null,"guru_id":null}
	]}`, string(raw))
}

func TestAssembleDropsIncompleteRowsAndSkipsPickedNonKBM(t *testing.T) {
	env := seninEnv(nil)
	d := mustDraft(t)(NewDraft().AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, "1", env))
	d = mustDraft(t)(d.AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 1, FieldTimeSlot, "3", env))

	sub := Assemble(d, env)

	assert.Equal(t, []DroppedRow{{DayID: senin, Index: 0, SlotID: "1", Reason: dropNoOffering}}, sub.Dropped)
	assert.Equal(t, []models.SubmissionItem{
		{DayID: senin, SlotID: "3"},
	}, sub.Items, "explicit Non-KBM row is not backfilled again; Selasa has no Non-KBM")
	assert.Equal(t, 1, sub.Explicit)
	assert.Equal(t, 0, sub.Backfill)
}

func TestAssembleIsDeterministicAndUnique(t *testing.T) {
	env := seninEnv(nil)
	d := mustDraft(t)(NewDraft().AddRow(selasa, env))
	d = mustDraft(t)(d.SetField(selasa, 0, FieldTimeSlot, "4", env))
	d = mustDraft(t)(d.SetField(selasa, 0, FieldOffering, string(ipa), env))
	d = mustDraft(t)(d.SetField(selasa, 0, FieldTeacher, "g2", env))
	d = mustDraft(t)(d.AddRow(senin, env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldTimeSlot, "1", env))
	d = mustDraft(t)(d.SetField(senin, 0, FieldOffering, string(mtk), env))

	first := Assemble(d, env)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Assemble(d, env))
	}

	seen := map[string]bool{}
	for _, item := range first.Items {
		assert.False(t, seen[item.Key()], "duplicate %s", item.Key())
		seen[item.Key()] = true
		if slot, _ := env.Catalog.Slot(item.SlotID); !slot.Instructional() {
			assert.Nil(t, item.OfferingID)
			assert.Nil(t, item.TeacherID)
		}
	}
	require.Len(t, first.Items, 3)
	assert.Equal(t, senin, first.Items[0].DayID, "days follow catalog order")
	assert.Equal(t, models.ID("g2"), *first.Items[2].TeacherID)
}

func TestAssembleSkipsBackfillForUnknownDays(t *testing.T) {
	env := seninEnv(nil, senin)
	sub := Assemble(NewDraft(), env)
	assert.Empty(t, sub.Items)
}

func TestAssembleNeverBackfillsOccupiedSlots(t *testing.T) {
	env := seninEnv(map[models.ID][]models.ID{senin: {"3"}})
	sub := Assemble(NewDraft(), env)
	assert.Empty(t, sub.Items)
}

func TestRenderConflict(t *testing.T) {
	assert.Equal(t, "Konflik: 07:00-07:45 (KBM) sudah terisi untuk 7B.",
		RenderConflict(models.ScheduleConflict{Start: "07:00", End: "07:45", Category: "KBM", Class: "7B"}))
	assert.Equal(t, "Konflik: 07:00-07:45 (Istirahat) adalah Non-KBM (global).",
		RenderConflict(models.ScheduleConflict{Start: "07:00:00", End: "07:45:00", Category: "Istirahat"}))
}

func TestMessagesFallbackOrder(t *testing.T) {
	wrap := func(s *models.SubmitError) error {
		return appErrors.WrapAs(s, appErrors.ErrValidation, "schedule rejected by backend")
	}

	assert.Equal(t, []string{"Konflik: 07:00-07:45 (KBM) sudah terisi untuk 7B."},
		Messages(wrap(&models.SubmitError{
			Message:   "ignored",
			Errors:    []string{"ignored"},
			Conflicts: []models.ScheduleConflict{{Start: "07:00", End: "07:45", Category: "KBM", Class: "7B"}},
		})))
	assert.Equal(t, []string{"hari_id wajib"}, Messages(wrap(&models.SubmitError{Errors: []string{" ", "hari_id wajib"}, Detail: []string{"d"}})))
	assert.Equal(t, []string{"d"}, Messages(wrap(&models.SubmitError{Detail: []string{"d"}, Message: "m"})))
	assert.Equal(t, []string{"m"}, Messages(wrap(&models.SubmitError{Message: "m"})))
	assert.Equal(t, []string{FallbackMessage}, Messages(wrap(&models.SubmitError{})))
	assert.Equal(t, []string{"schedule backend unavailable"}, Messages(fmt.Errorf("submit: %w", appErrors.ErrUpstream)))
	assert.Equal(t, []string{FallbackMessage}, Messages(errors.New("boom")))
	assert.Nil(t, Messages(nil))
}

func TestDraftOfSeedsEditRow(t *testing.T) {
	d := DraftOf(senin, Entry{SlotID: "1", Category: "KBM", OfferingID: mtk})
	assert.Equal(t, []models.ID{senin}, d.Days())
	assert.Equal(t, 1, d.Len())
	assert.True(t, d.Rows(senin)[0].Submittable())
	assert.Equal(t, 0, DraftOf(senin).Len())
}
