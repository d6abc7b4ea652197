package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
)

type cacheRepoStub struct {
	data    map[string][]byte
	ttl     time.Duration
	getErr  error
	deleted []string
}

func (r *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if r.data == nil {
		r.data = map[string][]byte{}
	}
	r.data[key] = raw
	r.ttl = ttl
	return nil
}

func (r *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	r.deleted = append(r.deleted, pattern)
	return nil
}

func TestCacheServiceHitMissAndMetrics(t *testing.T) {
	repo := &cacheRepoStub{}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()

	var out []string
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "k", []string{"Senin"}, 0))
	assert.Equal(t, 10*time.Minute, repo.ttl)

	hit, err = svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"Senin"}, out)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)

	require.NoError(t, svc.Invalidate(ctx, "jadwal:catalog:school-1:*"))
	assert.Equal(t, []string{"jadwal:catalog:school-1:*"}, repo.deleted)

	err = svc.Invalidate(ctx, "*")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Len(t, repo.deleted, 1)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := &cacheRepoStub{getErr: errors.New("connection refused")}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var out []string
	hit, err := svc.Get(context.Background(), "k", &out)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &cacheRepoStub{}
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	assert.False(t, svc.Enabled())

	require.NoError(t, svc.Set(context.Background(), "k", "v", 0))
	assert.Empty(t, repo.data)

	var nilSvc *CacheService
	hit, err := nilSvc.Get(context.Background(), "k", new(string))
	assert.False(t, hit)
	assert.NoError(t, err)
}
