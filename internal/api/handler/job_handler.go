package handler

import (
	"context"
	"net/http"
	"strconv"

	"resume-matcher/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/rs/zerolog"
)

// PostingFetcher 按数量上限抓取岗位目录，由 scraper.GitHubPostingSource 实现
type PostingFetcher interface {
	Fetch(ctx context.Context, limit int) ([]types.Posting, error)
}

// JobHandler 岗位目录只读接口
type JobHandler struct {
	source       PostingFetcher
	defaultLimit int
	maxLimit     int
	logger       zerolog.Logger
}

// NewJobHandler 创建岗位目录处理器
func NewJobHandler(source PostingFetcher, defaultLimit int, logger zerolog.Logger) *JobHandler {
	if defaultLimit <= 0 {
		defaultLimit = 40
	}
	return &JobHandler{
		source:       source,
		defaultLimit: defaultLimit,
		maxLimit:     200,
		logger:       logger,
	}
}

// HandleGetJobs 返回当前岗位目录
// GET /api/get_jobs?limit=N
func (h *JobHandler) HandleGetJobs(ctx context.Context, c *app.RequestContext) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, utils.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, h.maxLimit)
	}

	postings, err := h.source.Fetch(ctx, limit)
	if err != nil {
		h.logger.Warn().Err(err).Int("limit", limit).Msg("获取岗位目录失败")
		c.JSON(http.StatusBadGateway, utils.H{"error": "job source unavailable"})
		return
	}
	if postings == nil {
		postings = []types.Posting{}
	}
	c.JSON(http.StatusOK, utils.H{"jobs": postings, "count": len(postings)})
}
