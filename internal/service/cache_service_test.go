package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/hsuzuki/taskbox-api/pkg/errors"
)

type fakeCacheRepo struct {
	entries  map[string][]byte
	getErr   error
	patterns []string
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: make(map[string][]byte)}
}

func (f *fakeCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = raw
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	f.patterns = append(f.patterns, pattern)
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var out map[string]string
	assert.False(t, svc.Get(context.Background(), "k", &out))

	svc.Set(context.Background(), "k", map[string]string{"v": "1"})
	require.True(t, svc.Get(context.Background(), "k", &out))
	assert.Equal(t, "1", out["v"])
}

func TestCacheServiceFailureDegradesToMiss(t *testing.T) {
	repo := newFakeCacheRepo()
	repo.getErr = assert.AnError
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var out map[string]string
	assert.False(t, svc.Get(context.Background(), "k", &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)

	svc.Set(context.Background(), "k", "v")
	assert.Empty(t, repo.entries)

	var out string
	assert.False(t, svc.Get(context.Background(), "k", &out))
	assert.False(t, svc.Enabled())
}

func TestCacheServiceNilReceiver(t *testing.T) {
	var svc *CacheService

	assert.False(t, svc.Enabled())
	var out string
	assert.False(t, svc.Get(context.Background(), "k", &out))
	svc.Set(context.Background(), "k", "v")
	svc.Invalidate(context.Background(), "k:*")
}

func TestCacheServiceInvalidate(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	svc.Invalidate(context.Background(), "todos:user-1:*")
	assert.Equal(t, []string{"todos:user-1:*"}, repo.patterns)
}
