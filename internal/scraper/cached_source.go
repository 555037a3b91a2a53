package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-matcher/internal/constants"
	"resume-matcher/internal/processor"
	"resume-matcher/internal/storage"
	"resume-matcher/internal/types"
	"resume-matcher/pkg/utils"

	"github.com/rs/zerolog"
)

// Cache 岗位列表缓存，*storage.Redis 满足该接口
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
}

// CachedPostingSource 在 Redis 中缓存解析后的岗位列表，缓存不可用时直接回源
type CachedPostingSource struct {
	inner  processor.PostingSource
	cache  Cache
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// CatalogCacheKey 根据来源地址和数量上限生成缓存键
func CatalogCacheKey(sourceURL string, limit int) string {
	hash := utils.CalculateMD5([]byte(fmt.Sprintf("%s|%d", sourceURL, limit)))
	return fmt.Sprintf(constants.KeyPostingCatalog, hash)
}

// NewCachedPostingSource 包装一个岗位来源。ttl <= 0 时不缓存。
func NewCachedPostingSource(inner processor.PostingSource, cache Cache, key string, ttl time.Duration, logger zerolog.Logger) *CachedPostingSource {
	return &CachedPostingSource{
		inner:  inner,
		cache:  cache,
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

// FetchPostings 先读缓存，未命中时回源并写回。空列表不缓存。
func (c *CachedPostingSource) FetchPostings(ctx context.Context) ([]types.Posting, error) {
	if c.cache == nil || c.ttl <= 0 {
		return c.inner.FetchPostings(ctx)
	}

	raw, err := c.cache.Get(ctx, c.key)
	switch {
	case err == nil:
		var postings []types.Posting
		if jsonErr := json.Unmarshal([]byte(raw), &postings); jsonErr == nil && len(postings) > 0 {
			c.logger.Debug().Int("count", len(postings)).Msg("岗位列表命中缓存")
			return postings, nil
		}
		c.logger.Warn().Str("key", c.key).Msg("岗位缓存内容无效，回源")
	case errors.Is(err, storage.ErrNotFound):
	default:
		c.logger.Warn().Err(err).Msg("读取岗位缓存失败，回源")
	}

	postings, err := c.inner.FetchPostings(ctx)
	if err != nil {
		return nil, err
	}
	if len(postings) == 0 {
		return postings, nil
	}

	data, err := json.Marshal(postings)
	if err != nil {
		return postings, nil
	}
	if err := c.cache.Set(ctx, c.key, string(data), c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("写入岗位缓存失败")
	}
	return postings, nil
}
