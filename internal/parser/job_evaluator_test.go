package parser

import (
	"context"
	"testing"

	"resume-matcher/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evaluatorResume = `Software Engineering Intern
Built services in Go and PostgreSQL
Docker, Kubernetes
Seattle`

func TestKeywordMatchEvaluatorScores(t *testing.T) {
	profile := BuildProfile(evaluatorResume)
	require.Equal(t, []string{"Go", "PostgreSQL", "Docker", "Kubernetes"}, profile.Skills)
	evaluator := NewKeywordMatchEvaluator()

	tests := []struct {
		name         string
		posting      types.Posting
		wantScore    int
		wantReason   string
		wantEvidence []string
		wantMissing  []string
	}{
		{
			name: "部分技能匹配的远程实习",
			posting: types.Posting{
				Company: "Acme", Role: "Software Engineer Intern", Location: "Remote",
				Requirements: "Experience with Go, Python and Docker",
			},
			wantScore:  77,
			wantReason: "Strong fit: 2 of 3 required skills matched",
			wantEvidence: []string{
				"Go -> Built services in Go and PostgreSQL",
				"Docker -> Docker, Kubernetes",
				"Seniority -> candidate intern, posting intern",
				"Location -> remote",
			},
			wantMissing: []string{"Python"},
		},
		{
			name:         "没有技能要求的高级岗位",
			posting:      types.Posting{Company: "Globex", Role: "Senior Staff Engineer", Location: "New York, NY"},
			wantScore:    35,
			wantReason:   "Poor fit: posting lists no specific skills",
			wantEvidence: []string{},
			wantMissing:  []string{},
		},
		{
			name:       "地点未知",
			posting:    types.Posting{Company: "Initech", Role: "Backend Intern", Requirements: "Go"},
			wantScore:  95,
			wantReason: "Exceptional fit: 1 of 1 required skills matched",
			wantEvidence: []string{
				"Go -> Built services in Go and PostgreSQL",
				"Seniority -> candidate intern, posting intern",
				"Location -> posting location unknown",
			},
			wantMissing: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := evaluator.Match(context.Background(), profile, tt.posting)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, details.Score)
			assert.Equal(t, tt.wantReason, details.Reason)
			assert.Equal(t, tt.wantEvidence, details.Evidence)
			assert.Equal(t, tt.wantMissing, details.MissingSkills)
		})
	}
}

func TestKeywordMatchEvaluatorIsDeterministic(t *testing.T) {
	profile := BuildProfile(evaluatorResume)
	posting := types.Posting{Role: "Platform Intern", Location: "Seattle, WA", Requirements: "Kubernetes, Terraform, Go"}
	evaluator := NewKeywordMatchEvaluator()

	first, err := evaluator.Match(context.Background(), profile, posting)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := evaluator.Match(context.Background(), profile, posting)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestKeywordMatchEvaluatorIsMonotonic(t *testing.T) {
	posting := types.Posting{Role: "Software Engineer Intern", Requirements: "Go, Rust, SQL, Docker"}
	evaluator := NewKeywordMatchEvaluator()

	weaker, err := evaluator.Match(context.Background(), BuildProfile("Intern\nGo"), posting)
	require.NoError(t, err)
	stronger, err := evaluator.Match(context.Background(), BuildProfile("Intern\nGo, Rust, SQL"), posting)
	require.NoError(t, err)

	assert.Greater(t, stronger.Score, weaker.Score)
	assert.LessOrEqual(t, stronger.Score, 100)
}

func TestScoreSeniority(t *testing.T) {
	assert.Equal(t, seniorityNear, scoreSeniority(types.SeniorityUnknown, types.SeniorityUnknown))
	assert.Equal(t, seniorityExact, scoreSeniority(types.SeniorityUnknown, types.SeniorityIntern))
	assert.Equal(t, seniorityExact, scoreSeniority(types.SeniorityMid, types.SeniorityMid))
	assert.Equal(t, seniorityNear, scoreSeniority(types.SeniorityJunior, types.SeniorityMid))
	assert.Equal(t, 0.0, scoreSeniority(types.SeniorityIntern, types.SeniorityStaff))
	assert.Equal(t, 0.0, scoreSeniority(types.SeniorityUnknown, types.SeniorityJunior))
}

func TestMatchRejectsNilProfile(t *testing.T) {
	_, err := NewKeywordMatchEvaluator().Match(context.Background(), nil, types.Posting{})
	require.Error(t, err)
}
