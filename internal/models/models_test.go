package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDDecodesNumbersAndStrings(t *testing.T) {
	var slots []TimeSlot
	raw := `[{"id":1,"hari_id":"2","jam_mulai":"07:00:00","jam_selesai":"07:45:00","kategori_waktu":"KBM"},
		{"id":"abc","hari_id":null,"jam_mulai":"9:15","jam_selesai":"09:30","kategori_waktu":"Istirahat"}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &slots))

	assert.Equal(t, ID("1"), slots[0].ID)
	assert.Equal(t, ID("2"), slots[0].DayID)
	assert.Equal(t, "07:00-07:45", slots[0].Range())
	assert.True(t, slots[0].Instructional())
	assert.True(t, slots[0].Valid())

	assert.Equal(t, ID("abc"), slots[1].ID)
	assert.True(t, slots[1].DayID.IsZero())
	assert.Equal(t, "09:15-09:30", slots[1].Range())
	assert.False(t, slots[1].Instructional())
}

func TestIDKeepsNonCanonicalNumbersAsStrings(t *testing.T) {
	var item SubmissionItem
	require.NoError(t, json.Unmarshal([]byte(`{"hari_id":"01","waktu_id":"+5","offering_id":"-3","guru_id":7}`), &item))

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hari_id":"01","waktu_id":"+5","offering_id":-3,"guru_id":7}`, string(out))
}

func TestSubmissionItemEncodesNulls(t *testing.T) {
	offering := ID("12")
	items := []SubmissionItem{
		{DayID: "1", SlotID: "2", OfferingID: &offering},
		{DayID: "1", SlotID: "x-3"},
	}
	out, err := json.Marshal(CreateSchedulePayload{Items: items})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jadwal":[
		{"hari_id":1,"waktu_id":2,"offering_id":12,"guru_id":null},
		{"hari_id":1,"waktu_id":"x-3","offering_id":null,"guru_id":null}]}`, string(out))
}

func TestTimeSlotValidRejectsInvertedRange(t *testing.T) {
	assert.False(t, TimeSlot{Start: "08:00", End: "07:15"}.Valid())
	assert.False(t, TimeSlot{Start: "08:00", End: "08:00"}.Valid())
	assert.False(t, TimeSlot{}.Valid())
}

func TestAttendanceStatusRoundTrip(t *testing.T) {
	global, err := json.Marshal(AttendanceStatusOption{ID: "3", Global: true}.Resolve())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status_kehadiran_id":3}`, string(global))

	custom, err := json.Marshal(AttendanceStatusOption{ID: "7"}.Resolve())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status_custom_id":7}`, string(custom))

	var decoded AttendanceStatus
	require.NoError(t, json.Unmarshal(custom, &decoded))
	assert.Equal(t, AttendanceStatusCustom, decoded.Kind())
	assert.Equal(t, ID("7"), decoded.ID())

	assert.Error(t, json.Unmarshal([]byte(`{"status_kehadiran_id":1,"status_custom_id":2}`), &decoded))
}

func TestSubmitErrorMessage(t *testing.T) {
	err := &SubmitError{StatusCode: 409, Conflicts: []ScheduleConflict{{Start: "07:00"}}}
	assert.True(t, err.HasConflicts())
	assert.Contains(t, err.Error(), "1 conflict")
	assert.True(t, err.Conflicts[0].Global())

	assert.Equal(t, "kelas wajib diisi", (&SubmitError{Message: "kelas wajib diisi"}).Error())
}
