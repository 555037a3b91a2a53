package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resume-matcher/internal/parser"
	"resume-matcher/internal/storage"
	"resume-matcher/internal/types"

	"github.com/rs/zerolog"
)

// analyzeFile 读取本地简历并生成候选人画像
func analyzeFile(ctx context.Context, path string) (*types.CandidateProfile, error) {
	if path == "" {
		return nil, fmt.Errorf("必须提供简历文件路径 (-f)")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("无法获取文件的绝对路径: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", absPath, err)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	extractor, err := parser.NewEinoPDFTextExtractor(ctx, parser.WithEinoLogger(log))
	if err != nil {
		return nil, fmt.Errorf("创建PDF提取器失败: %w", err)
	}
	return parser.NewProfileAnalyzer(extractor, log).Analyze(ctx, data, storage.ContentTypeForFilename(absPath))
}

// handleExtractCommand 提取文本并输出画像
func handleExtractCommand() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	profile, err := analyzeFile(ctx, *resumeFile)
	if err != nil {
		return err
	}

	if *outputJSON {
		return printJSON(profile)
	}

	fmt.Printf("提取完成! 耗时: %v\n", time.Since(start))
	fmt.Printf("技能: %s\n", strings.Join(profile.Skills, ", "))
	fmt.Printf("资历: %s (经验 %d 年)\n", profile.Seniority, profile.YearsExperience)
	fmt.Printf("地点: %s (接受远程: %v)\n", strings.Join(profile.Locations, ", "), profile.RemoteOK)

	text := profile.Text
	if *maxLen >= 0 && len([]rune(text)) > *maxLen {
		text = string([]rune(text)[:*maxLen]) + "..."
	}
	fmt.Printf("\n===== 归一化文本 (总计 %d 字符) =====\n%s\n", len([]rune(profile.Text)), text)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
