package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type cacheRepoStub struct {
	items   map[string][]byte
	getErr  error
	deleted []string
}

func (r *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.items[key]
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
	r.items[key] = raw
	return nil
}

func (r *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	r.deleted = append(r.deleted, pattern)
	return nil
}

func TestCacheServiceRecordsHitsAndMisses(t *testing.T) {
	repo := &cacheRepoStub{items: map[string][]byte{}}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)

	var out []string
	hit, err := svc.Get(context.Background(), "timetable:catalog:all", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(context.Background(), "timetable:catalog:all", []string{"u-1"}, 0))
	hit, err = svc.Get(context.Background(), "timetable:catalog:all", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"u-1"}, out)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 0.0001)

	require.NoError(t, svc.Invalidate(context.Background(), "timetable:catalog:*"))
	assert.Equal(t, []string{"timetable:catalog:*"}, repo.deleted)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := &cacheRepoStub{items: map[string][]byte{}}
	svc := NewCacheService(repo, nil, 0, nil, false)

	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	var out int
	hit, err := svc.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, repo.items)

	var nilService *CacheService
	assert.False(t, nilService.Enabled())
}

func TestRememberLoadsOnceAndDegradesOnCacheErrors(t *testing.T) {
	repo := &cacheRepoStub{items: map[string][]byte{}}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	loads := 0
	load := func(ctx context.Context) (map[string]int, error) {
		loads++
		return map[string]int{"units": 3}, nil
	}

	first, hit, err := Remember(context.Background(), svc, "k", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := Remember(context.Background(), svc, "k", time.Minute, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)

	repo.getErr = errors.New("redis down")
	_, hit, err = Remember(context.Background(), svc, "k", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, loads)

	_, _, err = Remember(context.Background(), nil, "k", time.Minute, func(ctx context.Context) (int, error) {
		return 0, errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
}
