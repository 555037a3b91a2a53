package scraper

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"resume-matcher/internal/types"
	"resume-matcher/pkg/ratelimit"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	defaultDetailMaxChars    = 20000
	defaultDetailConcurrency = 4
)

// noisePatterns 招聘页面中与岗位无关的导航和版权文字
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Skip to main content[^\n]*`),
	regexp.MustCompile(`(?i)Sign In[^\n]*`),
	regexp.MustCompile(`(?i)© \d{4}[^\n]*`),
	regexp.MustCompile(`(?i)Apply\s*locations[^\n]*`),
	regexp.MustCompile(`(?i)Follow Us[^\n]*`),
}

// skippedElements 不提取文本的元素
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Svg:      true,
	atom.Iframe:   true,
}

// blockElements 这些元素前后换行
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Br: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Ul: true, atom.Ol: true,
}

// PostingDetailFetcher 抓取岗位申请页并提取纯文本作为要求
type PostingDetailFetcher struct {
	client      *resty.Client
	maxChars    int
	concurrency int
	limiter     *ratelimit.TokenBucket
	logger      zerolog.Logger
}

// NewPostingDetailFetcher 创建详情抓取器
func NewPostingDetailFetcher(timeout time.Duration, userAgent string, maxChars int, logger zerolog.Logger) *PostingDetailFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxChars <= 0 {
		maxChars = defaultDetailMaxChars
	}
	client := resty.New().SetTimeout(timeout).SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &PostingDetailFetcher{
		client:      client,
		maxChars:    maxChars,
		concurrency: defaultDetailConcurrency,
		logger:      logger,
	}
}

// WithRateLimit 限制对招聘站点的请求频率，nil 表示不限制
func (f *PostingDetailFetcher) WithRateLimit(limiter *ratelimit.TokenBucket) *PostingDetailFetcher {
	f.limiter = limiter
	return f
}

// FetchRequirements 抓取单个链接并返回清洗后的文本
func (f *PostingDetailFetcher) FetchRequirements(ctx context.Context, link string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := f.client.R().SetContext(ctx).Get(link)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("详情页返回状态码 %d", resp.StatusCode())
	}
	text, err := ExtractPageText(resp.String())
	if err != nil {
		return "", err
	}
	return truncateRunes(CleanDescription(text), f.maxChars), nil
}

// Enrich 并发填充每个岗位的 Requirements，失败时退回岗位名称
func (f *PostingDetailFetcher) Enrich(ctx context.Context, postings []types.Posting) {
	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup

	for i := range postings {
		p := &postings[i]
		if !strings.HasPrefix(p.ApplyLink, "http://") && !strings.HasPrefix(p.ApplyLink, "https://") {
			p.Requirements = p.Role
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			text, err := f.FetchRequirements(ctx, p.ApplyLink)
			if err != nil || strings.TrimSpace(text) == "" {
				f.logger.Debug().Err(err).Str("link", p.ApplyLink).Msg("岗位详情抓取失败，使用岗位名称")
				p.Requirements = p.Role
				return
			}
			p.Requirements = text
		}()
	}
	wg.Wait()
}

// ExtractPageText 提取 HTML 页面的可见文本，块级元素之间换行
func ExtractPageText(page string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("解析详情页失败: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			sb.WriteString("\n")
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// CleanDescription 去掉常见的导航、登录和版权噪声
func CleanDescription(text string) string {
	for _, p := range noisePatterns {
		text = p.ReplaceAllString(text, "")
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
