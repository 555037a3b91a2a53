package main

import (
	"context"
	"fmt"
	"time"

	"resume-matcher/internal/parser"
	"resume-matcher/internal/processor"
	"resume-matcher/internal/scraper"

	"github.com/rs/zerolog"
)

func newSource() *scraper.GitHubPostingSource {
	opts := []scraper.Option{scraper.WithLimit(*jobLimit)}
	if *withDetails {
		opts = append(opts, scraper.WithDetailFetcher(scraper.NewPostingDetailFetcher(10*time.Second, "", 0, zerolog.Nop())))
	}
	return scraper.NewGitHubPostingSource(*sourceURL, opts...)
}

// handleJobsCommand 列出当前岗位目录
func handleJobsCommand() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	postings, err := newSource().FetchPostings(ctx)
	if err != nil {
		return fmt.Errorf("抓取岗位失败: %w", err)
	}
	if *outputJSON {
		return printJSON(postings)
	}
	for i, p := range postings {
		fmt.Printf("%2d. %s | %s | %s | %s\n", i+1, p.Company, p.Role, p.Location, p.ApplyLink)
	}
	return nil
}

// handleMatchCommand 在本地完成画像、抓取和排序，不经过作业存储
func handleMatchCommand() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	profile, err := analyzeFile(ctx, *resumeFile)
	if err != nil {
		return err
	}
	postings, err := newSource().FetchPostings(ctx)
	if err != nil {
		return fmt.Errorf("抓取岗位失败: %w", err)
	}

	matches, err := processor.RankPostings(ctx, parser.NewKeywordMatchEvaluator(), profile, postings)
	if err != nil {
		return fmt.Errorf("匹配失败: %w", err)
	}
	if *outputJSON {
		return printJSON(matches)
	}
	for i, m := range matches {
		fmt.Printf("%2d. [%3d] %s - %s (%s)\n    %s\n", i+1, m.MatchDetails.Score, m.Company, m.Role, m.Location, m.MatchDetails.Reason)
	}
	return nil
}
