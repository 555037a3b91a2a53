package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// TikaPDFExtractor 是基于 Apache Tika 服务的 PDF 文本提取器
type TikaPDFExtractor struct {
	serverURL          string
	client             *resty.Client
	extractAnnotations bool
	logger             zerolog.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaPDFExtractor)

// WithAnnotations 配置是否提取链接注释文本
func WithAnnotations(extract bool) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.extractAnnotations = extract
	}
}

// WithTikaLogger 配置日志记录器
func WithTikaLogger(logger zerolog.Logger) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.logger = logger
	}
}

// WithTimeout 配置请求超时
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaPDFExtractor) {
		if timeout > 0 {
			e.client.SetTimeout(timeout)
		}
	}
}

var _ TextExtractor = (*TikaPDFExtractor)(nil)

// NewTikaPDFExtractor 创建一个新的Tika PDF解析器
func NewTikaPDFExtractor(serverURL string, options ...TikaOption) *TikaPDFExtractor {
	extractor := &TikaPDFExtractor{
		serverURL:          strings.TrimRight(serverURL, "/"),
		client:             resty.New().SetTimeout(60 * time.Second),
		extractAnnotations: true,
		logger:             zerolog.Nop(),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor
}

// ExtractText 通过 PUT /tika 提取纯文本
func (e *TikaPDFExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	startTime := time.Now()

	req := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/pdf").
		SetHeader("Accept", "text/plain").
		SetBody(data)
	if uri != "" {
		req.SetHeader("X-Tika-Resource-Name", uri)
	}
	if !e.extractAnnotations {
		req.SetHeader("X-Tika-PDFExtractAnnotationText", "false")
	}

	resp, err := req.Put(e.serverURL + "/tika")
	if err != nil {
		return "", fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode())
	}

	text := resp.String()
	e.logger.Debug().Str("uri", uri).Int("chars", len(text)).Dur("duration", time.Since(startTime)).Msg("Tika PDF文本提取完成")
	return text, nil
}

// FallbackExtractor 依次尝试多个提取器，返回第一个非空结果
type FallbackExtractor struct {
	extractors []TextExtractor
	logger     zerolog.Logger
}

// NewFallbackExtractor 创建回退提取器，nil 项会被忽略
func NewFallbackExtractor(logger zerolog.Logger, extractors ...TextExtractor) *FallbackExtractor {
	f := &FallbackExtractor{logger: logger}
	for _, e := range extractors {
		if e != nil {
			f.extractors = append(f.extractors, e)
		}
	}
	return f
}

// ExtractText 实现 TextExtractor
func (f *FallbackExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	if len(f.extractors) == 0 {
		return "", errors.New("没有可用的PDF提取器")
	}
	var errs []error
	for i, e := range f.extractors {
		text, err := e.ExtractText(ctx, data, uri)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = fmt.Errorf("提取器 %d 返回空文本", i)
		}
		f.logger.Warn().Err(err).Int("extractor", i).Msg("PDF提取失败，尝试下一个提取器")
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}
