package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"resume-matcher/internal/types"

	"github.com/rs/zerolog"
)

var (
	// ErrNoText 文档中没有可读文本
	ErrNoText = errors.New("document contains no readable text")
	// ErrUnsupportedContent 不支持的内容类型
	ErrUnsupportedContent = errors.New("unsupported document content type")
)

// ProfileAnalyzer 从简历文本中提取候选人画像，基于词表匹配，结果确定。
type ProfileAnalyzer struct {
	pdf    TextExtractor
	logger zerolog.Logger
}

// NewProfileAnalyzer 创建画像分析器，pdf 为 nil 时不支持 PDF
func NewProfileAnalyzer(pdf TextExtractor, logger zerolog.Logger) *ProfileAnalyzer {
	return &ProfileAnalyzer{pdf: pdf, logger: logger}
}

// Analyze 提取文本并构建画像。失败都是不可重试的。
func (a *ProfileAnalyzer) Analyze(ctx context.Context, doc []byte, contentType string) (*types.CandidateProfile, error) {
	var text string
	switch contentType {
	case "application/pdf":
		if a.pdf == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
		}
		extracted, err := a.pdf.ExtractText(ctx, doc, "resume.pdf")
		if err != nil {
			return nil, fmt.Errorf("提取PDF文本失败: %w", err)
		}
		text = extracted
	case "text/plain":
		text = decodePlainText(doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}

	text = cleanText(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}

	profile := BuildProfile(text)
	a.logger.Debug().
		Int("chars", len(text)).
		Strs("skills", profile.Skills).
		Str("seniority", profile.Seniority.String()).
		Strs("locations", profile.Locations).
		Msg("简历画像提取完成")
	return profile, nil
}

// BuildProfile 从已清洗的文本构建画像
func BuildProfile(text string) *types.CandidateProfile {
	return &types.CandidateProfile{
		Skills:          ExtractSkills(text),
		Seniority:       InferSeniority(text),
		YearsExperience: ExtractYearsExperience(text),
		Locations:       ExtractLocations(text),
		RemoteOK:        MentionsRemote(text),
		Text:            text,
	}
}
