package parser

import (
	"context"
	"time"

	"resume-matcher/internal/config"

	"github.com/rs/zerolog"
)

// BuildPDFExtractor 统一构建PDF解析器的逻辑。
// eino 为主；配置了 Tika 地址时，eino 失败或提取为空会回退到 Tika。
func BuildPDFExtractor(ctx context.Context, cfg config.ParserConfig, logger zerolog.Logger) (TextExtractor, error) {
	timeout := time.Duration(cfg.PDFTimeoutSeconds) * time.Second

	einoExtractor, err := NewEinoPDFTextExtractor(ctx, WithEinoLogger(logger), WithEinoTimeout(timeout))
	if err != nil {
		return nil, err
	}
	if cfg.TikaURL == "" {
		return einoExtractor, nil
	}

	logger.Info().Str("tika_url", cfg.TikaURL).Msg("启用 Tika 作为PDF解析回退")
	tika := NewTikaPDFExtractor(cfg.TikaURL, WithTikaLogger(logger), WithTimeout(timeout))
	return NewFallbackExtractor(logger, einoExtractor, tika), nil
}
