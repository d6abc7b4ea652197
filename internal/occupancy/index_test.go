package occupancy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
)

type occupancySourceStub struct {
	mu      sync.Mutex
	perDay  map[models.ID][]models.OccupancyRecord
	failDay models.ID
	calls   []models.ID
}

func (s *occupancySourceStub) ListOccupancy(ctx context.Context, classID, dayID models.ID) ([]models.OccupancyRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, dayID)
	s.mu.Unlock()
	if dayID == s.failDay {
		return nil, errors.New("502 bad gateway")
	}
	return s.perDay[dayID], nil
}

func TestNewKeyIgnoresOrderAndDuplicates(t *testing.T) {
	a := NewKey("7", []models.ID{"2", "1", "2", ""})
	b := NewKey("7", []models.ID{"1", "2"})
	c := NewKey("8", []models.ID{"1", "2"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, []models.ID{"1", "2"}, a.DayIDs())
}

func TestBuildKeepsOnlyTakenSlots(t *testing.T) {
	src := &occupancySourceStub{perDay: map[models.ID][]models.OccupancyRecord{
		"1": {{ID: "1", Taken: true}, {ID: "2", Taken: false}, {ID: "3", Taken: false}},
		"2": {{ID: "4", Taken: true}},
	}}

	ix, err := NewBuilder(src, 2, nil).Build(context.Background(), "7", []models.ID{"1", "2"})
	require.NoError(t, err)

	assert.True(t, ix.Taken("1", "1"))
	assert.False(t, ix.Taken("1", "2"))
	assert.True(t, ix.Taken("2", "4"))
	assert.False(t, ix.Taken("2", "1"))
	assert.True(t, ix.Known("1"))
	assert.False(t, ix.Known("5"), "days outside the key are unknown")
	assert.ElementsMatch(t, []models.ID{"1", "2"}, src.calls)
	assert.Equal(t, map[string][]string{"1": {"1"}, "2": {"4"}}, ix.Snapshot())
}

func TestBuildMarksFailedDaysUnknown(t *testing.T) {
	src := &occupancySourceStub{
		perDay:  map[models.ID][]models.OccupancyRecord{"1": {{ID: "1", Taken: true}}},
		failDay: "2",
	}

	ix, err := NewBuilder(src, 4, nil).Build(context.Background(), "7", []models.ID{"1", "2"})
	require.Error(t, err)
	require.NotNil(t, ix)
	assert.True(t, ix.Known("1"))
	assert.False(t, ix.Known("2"))
	assert.Equal(t, []models.ID{"2"}, ix.UnknownDays())
}

func TestBuildWithoutClassSkipsBackend(t *testing.T) {
	src := &occupancySourceStub{}
	ix, err := NewBuilder(src, 1, nil).Build(context.Background(), "", []models.ID{"1"})
	require.NoError(t, err)
	assert.Empty(t, src.calls)
	assert.False(t, ix.Taken("1", "1"))
}

func TestReleaseReturnsCopy(t *testing.T) {
	key := NewKey("7", []models.ID{"1"})
	ix := FromRecords(key, map[models.ID][]models.OccupancyRecord{
		"1": {{ID: "1", Taken: true}, {ID: "2", Taken: true}},
	}, nil)

	released := ix.Release("1", "2")

	assert.True(t, ix.Taken("1", "2"), "original untouched")
	assert.False(t, released.Taken("1", "2"))
	assert.True(t, released.Taken("1", "1"))
	assert.True(t, released.Matches(key))
}
