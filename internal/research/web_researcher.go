// Package research 为高分公司做可选的背景调研
package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resume-matcher/internal/types"
	"resume-matcher/pkg/ratelimit"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultEndpoint Tavily 兼容搜索接口
	DefaultEndpoint   = "https://api.tavily.com"
	defaultMaxResults = 3
)

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

// WebResearcher 调用搜索接口获取公司文化和面试相关的摘要
type WebResearcher struct {
	client     *resty.Client
	apiKey     string
	maxResults int
	limiter    *ratelimit.TokenBucket
	logger     zerolog.Logger
}

// NewWebResearcher 创建调研器。apiKey 为空时 Research 直接返回空结果。
func NewWebResearcher(endpoint, apiKey string, maxResults int, timeout time.Duration, logger zerolog.Logger) *WebResearcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebResearcher{
		client:     resty.New().SetBaseURL(strings.TrimRight(endpoint, "/")).SetTimeout(timeout),
		apiKey:     apiKey,
		maxResults: maxResults,
		logger:     logger,
	}
}

// WithRateLimit 限制搜索接口的调用频率，nil 表示不限制
func (w *WebResearcher) WithRateLimit(limiter *ratelimit.TokenBucket) *WebResearcher {
	w.limiter = limiter
	return w
}

// Enabled 是否配置了 API key
func (w *WebResearcher) Enabled() bool {
	return w.apiKey != ""
}

// Research 搜索公司的文化、价值观和面试流程
func (w *WebResearcher) Research(ctx context.Context, company string) ([]types.ResearchNote, error) {
	if !w.Enabled() || strings.TrimSpace(company) == "" {
		return []types.ResearchNote{}, nil
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out searchResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(searchRequest{
			APIKey:     w.apiKey,
			Query:      fmt.Sprintf("%s company culture, values, and interview process", company),
			MaxResults: w.maxResults,
		}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("调研请求失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("调研接口返回状态码 %d", resp.StatusCode())
	}

	notes := make([]types.ResearchNote, 0, len(out.Results))
	for _, r := range out.Results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		notes = append(notes, types.ResearchNote{Content: r.Content, URL: r.URL})
	}
	w.logger.Debug().Str("company", company).Int("notes", len(notes)).Msg("公司调研完成")
	return notes, nil
}
