package scraper // 从 SimplifyJobs README 抓取实习岗位列表

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resume-matcher/internal/processor"
	"resume-matcher/internal/tracing"
	"resume-matcher/internal/types"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// DefaultSourceURL 默认岗位来源
	DefaultSourceURL = "https://raw.githubusercontent.com/SimplifyJobs/Summer2026-Internships/dev/README.md"
	// DefaultLimit 默认最多返回的岗位数
	DefaultLimit = 40

	// NoLink 岗位没有申请链接时的占位
	NoLink = "No link"

	subListingMarker = "↳"
	closedMarker     = "🔒"
)

// ErrNoTable 页面中没有岗位表格
var ErrNoTable = errors.New("no postings table found on page")

// GitHubPostingSource 抓取 README 中的 HTML 表格并解析为岗位列表
type GitHubPostingSource struct {
	url     string
	limit   int
	client  *resty.Client
	details *PostingDetailFetcher
	logger  zerolog.Logger
}

// Option 配置 GitHubPostingSource
type Option func(*GitHubPostingSource)

// WithLimit 最多返回的岗位数
func WithLimit(limit int) Option {
	return func(s *GitHubPostingSource) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithTimeout 请求超时
func WithTimeout(timeout time.Duration) Option {
	return func(s *GitHubPostingSource) {
		if timeout > 0 {
			s.client.SetTimeout(timeout)
		}
	}
}

// WithUserAgent 请求使用的 User-Agent
func WithUserAgent(ua string) Option {
	return func(s *GitHubPostingSource) {
		if ua != "" {
			s.client.SetHeader("User-Agent", ua)
		}
	}
}

// WithDetailFetcher 抓取每个岗位的详情页作为要求文本
func WithDetailFetcher(f *PostingDetailFetcher) Option {
	return func(s *GitHubPostingSource) {
		s.details = f
	}
}

// WithLogger 设置日志器
func WithLogger(logger zerolog.Logger) Option {
	return func(s *GitHubPostingSource) {
		s.logger = logger
	}
}

// NewGitHubPostingSource 创建岗位来源
func NewGitHubPostingSource(url string, opts ...Option) *GitHubPostingSource {
	if url == "" {
		url = DefaultSourceURL
	}
	s := &GitHubPostingSource{
		url:    url,
		limit:  DefaultLimit,
		client: resty.New().SetTimeout(10 * time.Second).SetHeader("User-Agent", "resume-matcher/1.0"),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL 来源地址
func (s *GitHubPostingSource) URL() string {
	return s.url
}

// FetchPostings 实现 processor.PostingSource
func (s *GitHubPostingSource) FetchPostings(ctx context.Context) ([]types.Posting, error) {
	return s.Fetch(ctx, s.limit)
}

// Fetch 抓取最多 limit 个岗位。网络错误、429 和 5xx 返回 transient 错误。
func (s *GitHubPostingSource) Fetch(ctx context.Context, limit int) ([]types.Posting, error) {
	if limit <= 0 {
		limit = s.limit
	}
	start := time.Now()

	ctx, span := otel.Tracer("scraper").Start(ctx, "scraper.FetchPostings",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", s.url), attribute.Int("postings.limit", limit)))
	defer span.End()

	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return nil, processor.Transient("fetch_postings", err)
	}
	status := resp.StatusCode()
	if status != http.StatusOK {
		statusErr := fmt.Errorf("岗位来源返回状态码 %d", status)
		tracing.RecordHTTPError(span, statusErr, status)
		if status == http.StatusTooManyRequests || status >= 500 {
			return nil, processor.Transient("fetch_postings", statusErr)
		}
		return nil, statusErr
	}

	postings, err := ParsePostings(resp.String(), limit)
	if err != nil {
		return nil, err
	}

	if s.details != nil {
		s.details.Enrich(ctx, postings)
	}

	s.logger.Debug().Int("count", len(postings)).Dur("duration", time.Since(start)).Msg("岗位列表抓取完成")
	return postings, nil
}

// ParsePostings 解析页面中第一个表格的行：公司、岗位、地点、申请链接。
// "↳" 或空的公司沿用上一行；少于 4 列的行和已关闭（🔒）的岗位被跳过。
func ParsePostings(page string, limit int) ([]types.Posting, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("解析岗位页面失败: %w", err)
	}

	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil, ErrNoTable
	}
	body := findFirst(table, atom.Tbody)
	if body == nil {
		body = table
	}

	postings := make([]types.Posting, 0, limit)
	lastCompany := ""
	for row := body.FirstChild; row != nil; row = row.NextSibling {
		if limit > 0 && len(postings) >= limit {
			break
		}
		if row.Type != html.ElementNode || row.DataAtom != atom.Tr {
			continue
		}

		cells := childElements(row, atom.Td)
		if len(cells) < 4 {
			continue
		}

		rawCompany := nodeText(cells[0])
		company := rawCompany
		if rawCompany == "" || strings.Contains(rawCompany, subListingMarker) {
			company = lastCompany
		} else {
			lastCompany = rawCompany
		}
		if company == "" {
			continue
		}
		if isClosed(cells) {
			continue
		}

		link := NoLink
		if a := findFirst(cells[3], atom.A); a != nil {
			if href := attr(a, "href"); href != "" {
				link = href
			}
		}

		postings = append(postings, types.Posting{
			Company:   company,
			Role:      nodeText(cells[1]),
			Location:  nodeText(cells[2]),
			ApplyLink: link,
		})
	}
	return postings, nil
}

func isClosed(cells []*html.Node) bool {
	for _, c := range cells {
		if strings.Contains(nodeText(c), closedMarker) {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func childElements(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			out = append(out, c)
		}
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText 节点的全部文本，空白折叠为单个空格；<br> 视为分隔
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
