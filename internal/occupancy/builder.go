package occupancy

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
)

// Source returns the taken flags of every slot of a (class, day).
type Source interface {
	ListOccupancy(ctx context.Context, classID, dayID models.ID) ([]models.OccupancyRecord, error)
}

// Builder rebuilds indexes wholesale from the backend.
type Builder struct {
	source      Source
	maxParallel int
	logger      *zap.Logger
}

// NewBuilder constructs a Builder issuing at most maxParallel queries at once.
func NewBuilder(source Source, maxParallel int, logger *zap.Logger) *Builder {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{source: source, maxParallel: maxParallel, logger: logger}
}

// Build issues one occupancy query per active day. Failed days are marked
// unknown in the index and reported in the returned error; the index is
// always usable.
func (b *Builder) Build(ctx context.Context, classID models.ID, days []models.ID) (*Index, error) {
	key := NewKey(classID, days)
	if classID.IsZero() {
		return Empty(key), nil
	}

	var (
		mu      sync.Mutex
		records = make(map[models.ID][]models.OccupancyRecord, len(days))
		failed  []models.ID
		g       errgroup.Group
	)
	g.SetLimit(b.maxParallel)

	for _, day := range key.DayIDs() {
		day := day
		g.Go(func() error {
			rows, err := b.source.ListOccupancy(ctx, classID, day)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, day)
				return fmt.Errorf("hari %s: %w", day, err)
			}
			records[day] = rows
			return nil
		})
	}

	err := g.Wait()
	ix := FromRecords(key, records, failed)
	if err != nil {
		b.logger.Warn("occupancy partially loaded",
			zap.String("class_id", classID.String()),
			zap.Stringers("failed_days", failed),
			zap.Error(err))
		return ix, appErrors.WrapAs(err, appErrors.ErrUpstream, "gagal memuat jadwal terpakai")
	}
	return ix, nil
}
