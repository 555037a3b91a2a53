package parser

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEinoPDFTextExtractor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err, "创建PDF提取器不应返回错误")
	require.NotNil(t, extractor.parser, "PDF提取器内部的parser不应为nil")
	assert.Equal(t, 30*time.Second, extractor.timeout)

	custom, err := NewEinoPDFTextExtractor(ctx, WithEinoLogger(zerolog.Nop()), WithEinoTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, custom.timeout)
}

func TestEinoExtractRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err)

	_, err = extractor.ExtractText(ctx, []byte("this is not a pdf"), "garbage.pdf")
	require.Error(t, err, "损坏的PDF应返回错误")
}
