package processor

import (
	"context"
	"fmt"
	"sort"

	"resume-matcher/internal/types"
)

// RankPostings 对每个岗位评分并按分数降序稳定排序，同分保持来源顺序。
// 单个岗位的非瞬时错误会跳过该岗位；瞬时错误（已重试耗尽）终止整个排名。
// 所有岗位都无法评分时返回错误。
func RankPostings(ctx context.Context, matcher Matcher, profile *types.CandidateProfile, postings []types.Posting) ([]types.MatchResult, error) {
	results := make([]types.MatchResult, 0, len(postings))
	var lastErr error

	for _, posting := range postings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		details, err := matcher.Match(ctx, profile, posting)
		if err != nil {
			if IsTransient(err) {
				return nil, err
			}
			lastErr = err
			continue
		}
		details.Normalize()

		results = append(results, types.MatchResult{
			Company:      posting.Company,
			Role:         posting.Role,
			Location:     posting.Location,
			ApplyLink:    posting.ApplyLink,
			MatchDetails: details,
		})
	}

	if len(results) == 0 && len(postings) > 0 {
		return nil, fmt.Errorf("%d 个岗位均无法评分: %w", len(postings), lastErr)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchDetails.Score > results[j].MatchDetails.Score
	})
	return results, nil
}

// companiesToResearch 分数高于阈值的公司，按排名顺序去重，最多 limit 个
func companiesToResearch(matches []types.MatchResult, threshold, limit int) []string {
	seen := make(map[string]struct{})
	var companies []string
	for _, m := range matches {
		if m.MatchDetails.Score <= threshold {
			break
		}
		if m.Company == "" {
			continue
		}
		if _, ok := seen[m.Company]; ok {
			continue
		}
		seen[m.Company] = struct{}{}
		companies = append(companies, m.Company)
		if limit > 0 && len(companies) >= limit {
			break
		}
	}
	return companies
}
