package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
)

type sourceStub struct {
	mu         sync.Mutex
	calls      map[string]int
	days       []models.Day
	slots      []models.TimeSlot
	offerings  []models.Offering
	teachers   []models.TeacherOffering
	failDays   bool
	failSlots  bool
	classes    []models.Class
	offeringOf models.ID
}

func (s *sourceStub) hit(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[name]++
}

func (s *sourceStub) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *sourceStub) ListClasses(ctx context.Context) ([]models.Class, error) {
	s.hit("kelas")
	return s.classes, nil
}

func (s *sourceStub) ListDays(ctx context.Context, classID models.ID) ([]models.Day, error) {
	s.hit("hari")
	if s.failDays {
		return nil, errors.New("timeout")
	}
	return s.days, nil
}

func (s *sourceStub) ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	s.hit("waktu")
	if s.failSlots {
		return nil, errors.New("timeout")
	}
	return s.slots, nil
}

func (s *sourceStub) ListOfferings(ctx context.Context, classID models.ID) ([]models.Offering, error) {
	s.hit("offering")
	s.offeringOf = classID
	return s.offerings, nil
}

func (s *sourceStub) ListTeacherOfferings(ctx context.Context) ([]models.TeacherOffering, error) {
	s.hit("guru")
	return s.teachers, nil
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = raw
	return nil
}

func (m *memoryCache) Invalidate(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func fixtureSource() *sourceStub {
	return &sourceStub{
		days: []models.Day{{ID: "1", Name: "Senin"}, {ID: "2", Name: "Selasa"}},
		slots: []models.TimeSlot{
			{ID: "3", DayID: "1", Start: "09:00", End: "09:15", Category: "Istirahat"},
			{ID: "1", DayID: "1", Start: "07:00", End: "07:45", Category: "KBM"},
			{ID: "2", DayID: "1", Start: "07:45", End: "08:30", Category: "kbm"},
			{ID: "9", DayID: "1", Start: "10:00", End: "09:00", Category: "KBM"},
			{ID: "4", DayID: "2", Start: "07:00", End: "07:45", Category: "KBM"},
		},
		offerings: []models.Offering{{ID: "10", Label: "Matematika-7A"}, {ID: "11", Label: "IPA-7A"}},
		teachers: []models.TeacherOffering{
			{ID: "100", Name: "Bu Sari", OfferingID: "10"},
			{ID: "101", Name: "Pak Budi", OfferingID: "11"},
			{ID: "102", Name: "Pak Joko", OfferingID: "99"},
		},
	}
}

func TestLoadForClassBuildsSelectors(t *testing.T) {
	src := fixtureSource()
	loader := NewLoader(src, nil, time.Minute, nil)

	cat, err := loader.LoadForClass(context.Background(), "school-1", "7")
	require.NoError(t, err)

	assert.True(t, cat.Availability().Ready())
	assert.Equal(t, models.ID("7"), cat.ClassID())
	assert.Equal(t, models.ID("7"), src.offeringOf)
	assert.Equal(t, []models.ID{"1", "2"}, cat.DayIDs())

	var ids []models.ID
	for _, slot := range cat.SlotsForDay("1") {
		ids = append(ids, slot.ID)
	}
	assert.Equal(t, []models.ID{"1", "2", "3"}, ids, "ordered by start time, invalid slot dropped")
	assert.Len(t, cat.InstructionalSlots("1"), 2)
	assert.Len(t, cat.NonInstructionalSlots("1"), 1)
	assert.Equal(t, []models.ID{"9"}, cat.InvalidSlots())

	_, ok := cat.SlotOnDay("2", "1")
	assert.False(t, ok, "slot 1 belongs to Senin")

	assert.Len(t, cat.TeachersFor("10"), 1)
	assert.True(t, cat.TeacherEligible("10", "100"))
	assert.False(t, cat.TeacherEligible("10", "101"))
	assert.Empty(t, cat.TeachersFor("99"), "teachers of foreign offerings are ignored")
}

func TestLoadForClassWithoutClassLeavesDependentListsEmpty(t *testing.T) {
	src := fixtureSource()
	cat, err := NewLoader(src, nil, time.Minute, nil).LoadForClass(context.Background(), "school-1", "")
	require.NoError(t, err)

	assert.Empty(t, cat.Offerings())
	assert.Empty(t, cat.Days())
	assert.False(t, cat.Availability().Offerings)
	assert.True(t, cat.Availability().Slots)
	assert.Equal(t, 0, src.count("offering"))
	assert.Equal(t, 0, src.count("hari"))
}

func TestLoadForClassPartialFailure(t *testing.T) {
	src := fixtureSource()
	src.failDays = true

	cat, err := NewLoader(src, nil, time.Minute, nil).LoadForClass(context.Background(), "school-1", "7")
	require.Error(t, err)
	require.NotNil(t, cat)
	assert.True(t, errors.Is(err, appErrors.ErrUpstream))
	assert.Contains(t, err.Error(), "hari")

	avail := cat.Availability()
	assert.False(t, avail.Days)
	assert.True(t, avail.Slots)
	assert.True(t, avail.Offerings)
	assert.Empty(t, cat.Days())
	assert.Len(t, cat.Offerings(), 2)
}

func TestLoaderCachesSchoolWideLists(t *testing.T) {
	src := fixtureSource()
	loader := NewLoader(src, &memoryCache{}, time.Minute, nil)

	_, err := loader.LoadForClass(context.Background(), "school-1", "7")
	require.NoError(t, err)
	cat, err := loader.LoadForClass(context.Background(), "school-1", "8")
	require.NoError(t, err)

	assert.Equal(t, 1, src.count("waktu"))
	assert.Equal(t, 1, src.count("guru"))
	assert.Equal(t, 2, src.count("hari"))
	assert.Equal(t, 2, src.count("offering"))
	assert.Len(t, cat.SlotsForDay("1"), 3, "cached slots decode back into the catalog")

	_, err = loader.LoadForClass(context.Background(), "school-2", "7")
	require.NoError(t, err)
	assert.Equal(t, 2, src.count("waktu"), "cache is scoped per school")
}

func TestListClassesUsesCache(t *testing.T) {
	src := fixtureSource()
	src.classes = []models.Class{{ID: "7", Name: "7A"}}
	loader := NewLoader(src, &memoryCache{}, time.Minute, nil)

	for i := 0; i < 2; i++ {
		classes, err := loader.ListClasses(context.Background(), "school-1")
		require.NoError(t, err)
		assert.Equal(t, "7A", classes[0].Name)
	}
	assert.Equal(t, 1, src.count("kelas"))
}

func TestLoaderRefreshEvictsOnlyItsScope(t *testing.T) {
	src := fixtureSource()
	loader := NewLoader(src, &memoryCache{}, time.Minute, nil)
	ctx := context.Background()

	_, err := loader.LoadForClass(ctx, "school-1", "7")
	require.NoError(t, err)
	_, err = loader.LoadForClass(ctx, "school-2", "7")
	require.NoError(t, err)
	require.Equal(t, 2, src.count("waktu"))

	require.NoError(t, loader.Refresh(ctx, "school-1"))
	_, err = loader.LoadForClass(ctx, "school-1", "7")
	require.NoError(t, err)
	_, err = loader.LoadForClass(ctx, "school-2", "7")
	require.NoError(t, err)
	assert.Equal(t, 3, src.count("waktu"))

	assert.NoError(t, NewLoader(src, nil, time.Minute, nil).Refresh(ctx, "school-1"))
}

func TestLoaderDoesNotCacheWithoutSchoolScope(t *testing.T) {
	cache := &memoryCache{}
	ctx := context.Background()

	first := fixtureSource()
	first.classes = []models.Class{{ID: "7", Name: "7A"}}
	classes, err := NewLoader(first, cache, time.Minute, nil).ListClasses(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "7A", classes[0].Name)
	_, err = NewLoader(first, cache, time.Minute, nil).LoadForClass(ctx, "", "7")
	require.NoError(t, err)

	second := fixtureSource()
	second.classes = []models.Class{{ID: "30", Name: "XII IPA 1"}}
	loader := NewLoader(second, cache, time.Minute, nil)
	classes, err = loader.ListClasses(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "XII IPA 1", classes[0].Name)
	_, err = loader.LoadForClass(ctx, "", "30")
	require.NoError(t, err)

	assert.Equal(t, 1, second.count("kelas"))
	assert.Equal(t, 1, second.count("waktu"))
	assert.Equal(t, 1, second.count("guru"))
	assert.Empty(t, cache.data)
	assert.NoError(t, loader.Refresh(ctx, ""))
}
