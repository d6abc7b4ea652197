package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
)

// Source fetches reference lists from the school backend.
type Source interface {
	ListClasses(ctx context.Context) ([]models.Class, error)
	ListDays(ctx context.Context, classID models.ID) ([]models.Day, error)
	ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error)
	ListOfferings(ctx context.Context, classID models.ID) ([]models.Offering, error)
	ListTeacherOfferings(ctx context.Context) ([]models.TeacherOffering, error)
}

// Cache stores school-wide lists between sessions.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// Loader builds catalogs for the schedule form.
type Loader struct {
	source Source
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewLoader constructs a Loader. cache may be nil.
func NewLoader(source Source, cache Cache, ttl time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{source: source, cache: cache, ttl: ttl, logger: logger}
}

// CacheKey returns the cache key of a school-wide list.
func CacheKey(scope, list string) string {
	return fmt.Sprintf("jadwal:catalog:%s:%s", scope, list)
}

// Refresh evicts every cached list of a school scope so the next load hits
// the backend.
func (l *Loader) Refresh(ctx context.Context, scope string) error {
	if l.cache == nil || scope == "" {
		return nil
	}
	return l.cache.Invalidate(ctx, CacheKey(scope, "*"))
}

// ListClasses returns the class selector list for a school scope.
func (l *Loader) ListClasses(ctx context.Context, scope string) ([]models.Class, error) {
	return cached(ctx, l, scope, "kelas", l.source.ListClasses)
}

// LoadForClass fetches days, slots, offerings and teachers in parallel. It always
// returns a catalog; lists whose fetch failed are empty with their availability
// flag cleared, and the failures are joined into the returned error.
func (l *Loader) LoadForClass(ctx context.Context, scope string, classID models.ID) (*Catalog, error) {
	var (
		lists                                 Lists
		avail                                 Availability
		daysErr, slotsErr, offrErr, teacherErr error
		g                                     errgroup.Group
	)

	g.Go(func() error {
		lists.Slots, slotsErr = cached(ctx, l, scope, "waktu", l.source.ListTimeSlots)
		return slotsErr
	})

	if !classID.IsZero() {
		g.Go(func() error {
			lists.Days, daysErr = l.source.ListDays(ctx, classID)
			return daysErr
		})
		g.Go(func() error {
			lists.Offerings, offrErr = l.source.ListOfferings(ctx, classID)
			return offrErr
		})
		g.Go(func() error {
			lists.Teachers, teacherErr = cached(ctx, l, scope, "guru-mapel", l.source.ListTeacherOfferings)
			return teacherErr
		})
	}

	if err := g.Wait(); err != nil {
		l.logger.Warn("catalog partially loaded",
			zap.String("class_id", classID.String()),
			zap.Error(err))
	}

	avail.Slots = slotsErr == nil
	if !classID.IsZero() {
		avail.Days = daysErr == nil
		avail.Offerings = offrErr == nil
		avail.Teachers = teacherErr == nil
	}

	cat := New(classID, lists, avail)
	if invalid := cat.InvalidSlots(); len(invalid) > 0 {
		l.logger.Warn("dropped invalid time slots",
			zap.Int("count", len(invalid)),
			zap.Stringers("slot_ids", invalid))
	}

	if err := errors.Join(
		annotate(daysErr, "hari"),
		annotate(slotsErr, "waktu"),
		annotate(offrErr, "offering"),
		annotate(teacherErr, "guru-mapel"),
	); err != nil {
		return cat, appErrors.WrapAs(err, appErrors.ErrUpstream, "gagal memuat data pilihan")
	}
	return cat, nil
}

func annotate(err error, list string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", list, err)
}

// cached reads list through the cache under scope. An empty scope cannot be
// attributed to a school, so it always goes to the backend.
func cached[T any](ctx context.Context, l *Loader, scope, list string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	if l.cache == nil || scope == "" {
		return fetch(ctx)
	}
	key := CacheKey(scope, list)
	var hit []T
	if ok, err := l.cache.Get(ctx, key, &hit); err == nil && ok {
		return hit, nil
	}

	items, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := l.cache.Set(ctx, key, items, l.ttl); err != nil {
		l.logger.Debug("catalog cache write skipped", zap.String("key", key), zap.Error(err))
	}
	return items, nil
}
