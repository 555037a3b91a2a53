package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"resume-matcher/internal/storage"
	"resume-matcher/internal/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls    int
	postings []types.Posting
	err      error
}

func (s *countingSource) FetchPostings(ctx context.Context) ([]types.Posting, error) {
	s.calls++
	return s.postings, s.err
}

func newTestCache(t *testing.T) (*storage.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewRedisFromClient(client), mr
}

func TestCatalogCacheKey(t *testing.T) {
	a := CatalogCacheKey("https://example.com/readme", 40)
	assert.Contains(t, a, "app:posting:catalog:")
	assert.NotEqual(t, a, CatalogCacheKey("https://example.com/readme", 10))
	assert.Equal(t, a, CatalogCacheKey("https://example.com/readme", 40))
}

func TestCachedPostingSourceHitsCache(t *testing.T) {
	cache, mr := newTestCache(t)
	inner := &countingSource{postings: []types.Posting{{Company: "Acme", Role: "Intern", ApplyLink: NoLink}}}
	key := CatalogCacheKey("src", 40)
	src := NewCachedPostingSource(inner, cache, key, time.Minute, zerolog.Nop())

	first, err := src.FetchPostings(context.Background())
	require.NoError(t, err)
	second, err := src.FetchPostings(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls, "第二次应命中缓存")
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists(key))

	mr.FastForward(2 * time.Minute)
	_, err = src.FetchPostings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "过期后回源")
}

func TestCachedPostingSourceSkipsEmptyAndErrors(t *testing.T) {
	cache, mr := newTestCache(t)
	key := CatalogCacheKey("src", 40)

	empty := &countingSource{}
	_, err := NewCachedPostingSource(empty, cache, key, time.Minute, zerolog.Nop()).FetchPostings(context.Background())
	require.NoError(t, err)
	assert.False(t, mr.Exists(key), "空列表不缓存")

	failing := &countingSource{err: errors.New("boom")}
	_, err = NewCachedPostingSource(failing, cache, key, time.Minute, zerolog.Nop()).FetchPostings(context.Background())
	require.Error(t, err)
	assert.False(t, mr.Exists(key))
}

func TestCachedPostingSourceFallsThroughWhenRedisDown(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	inner := &countingSource{postings: []types.Posting{{Company: "Acme", Role: "Intern"}}}
	src := NewCachedPostingSource(inner, cache, "k", time.Minute, zerolog.Nop())
	postings, err := src.FetchPostings(context.Background())
	require.NoError(t, err)
	assert.Len(t, postings, 1)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedPostingSourceIgnoresCorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t)
	require.NoError(t, mr.Set("k", "not-json"))

	inner := &countingSource{postings: []types.Posting{{Company: "Acme", Role: "Intern"}}}
	postings, err := NewCachedPostingSource(inner, cache, "k", time.Minute, zerolog.Nop()).FetchPostings(context.Background())
	require.NoError(t, err)
	assert.Len(t, postings, 1)
	assert.Equal(t, 1, inner.calls)
}
