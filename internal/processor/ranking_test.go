package processor

import (
	"context"
	"errors"
	"testing"

	"resume-matcher/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankPostingsStableDescending(t *testing.T) {
	matcher := &scoreMatcher{scores: map[string]int{"A": 60, "B": 90, "C": 60, "D": 75, "E": 130}}
	profile := &types.CandidateProfile{}

	ranked, err := RankPostings(context.Background(), matcher, profile, postings("A", "B", "C", "D", "E"))
	require.NoError(t, err)

	var order []string
	for _, r := range ranked {
		order = append(order, r.Company)
		assert.GreaterOrEqual(t, r.MatchDetails.Score, 0)
		assert.LessOrEqual(t, r.MatchDetails.Score, 100)
		assert.NotEmpty(t, r.MatchDetails.Reason)
		assert.NotNil(t, r.MatchDetails.Evidence)
		assert.NotNil(t, r.MatchDetails.MissingSkills)
	}
	assert.Equal(t, []string{"E", "B", "D", "A", "C"}, order, "同分岗位保持来源顺序")
	assert.Equal(t, 100, ranked[0].MatchDetails.Score)
}

func TestRankPostingsEmpty(t *testing.T) {
	ranked, err := RankPostings(context.Background(), &scoreMatcher{}, &types.CandidateProfile{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}

func TestRankPostingsStopsOnTransientError(t *testing.T) {
	matcher := &scoreMatcher{errs: map[string]error{"B": Transient("match", errors.New("429"))}}
	_, err := RankPostings(context.Background(), matcher, &types.CandidateProfile{}, postings("A", "B", "C"))
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, matcher.calls)
}

func TestCompaniesToResearch(t *testing.T) {
	ranked := []types.MatchResult{
		{Company: "A", MatchDetails: types.MatchDetails{Score: 95}},
		{Company: "A", MatchDetails: types.MatchDetails{Score: 90}},
		{Company: "", MatchDetails: types.MatchDetails{Score: 88}},
		{Company: "B", MatchDetails: types.MatchDetails{Score: 81}},
		{Company: "C", MatchDetails: types.MatchDetails{Score: 80}},
	}
	assert.Equal(t, []string{"A", "B"}, companiesToResearch(ranked, 80, 5))
	assert.Equal(t, []string{"A"}, companiesToResearch(ranked, 80, 1))
	assert.Empty(t, companiesToResearch(ranked, 99, 5))
}
