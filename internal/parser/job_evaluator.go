package parser

import (
	"context"
	"fmt"
	"math"
	"strings"

	"resume-matcher/internal/types"
)

const (
	skillWeight         = 70.0
	neutralSkillScore   = 35.0
	seniorityExact      = 20.0
	seniorityNear       = 10.0
	locationMatch       = 10.0
	locationUnknown     = 5.0
	maxEvidenceLineChar = 160
)

// KeywordMatchEvaluator 基于词表的确定性匹配：
// 技能覆盖率 70 分，级别 20 分，地点 10 分。输入相同则输出相同。
type KeywordMatchEvaluator struct{}

// NewKeywordMatchEvaluator 创建评估器
func NewKeywordMatchEvaluator() *KeywordMatchEvaluator {
	return &KeywordMatchEvaluator{}
}

// Match 计算候选人与单个岗位的匹配结果
func (e *KeywordMatchEvaluator) Match(ctx context.Context, profile *types.CandidateProfile, posting types.Posting) (types.MatchDetails, error) {
	if profile == nil {
		return types.MatchDetails{}, fmt.Errorf("候选人画像为空")
	}

	required := ExtractSkills(posting.Role + "\n" + posting.Requirements)
	evidence := make([]string, 0, len(required)+2)
	missing := make([]string, 0, len(required))
	matched := 0

	resumeLines := foldedLines(profile.Text)
	for _, skill := range required {
		if !profile.HasSkill(skill) {
			missing = append(missing, skill)
			continue
		}
		matched++
		evidence = append(evidence, fmt.Sprintf("%s -> %s", skill, evidenceLine(resumeLines, skill)))
	}

	skillPart := neutralSkillScore
	if len(required) > 0 {
		skillPart = skillWeight * float64(matched) / float64(len(required))
	}

	postingLevel := InferSeniority(posting.Role)
	seniorityPart := scoreSeniority(profile.Seniority, postingLevel)
	if seniorityPart > 0 {
		evidence = append(evidence, fmt.Sprintf("Seniority -> candidate %s, posting %s", profile.Seniority, postingLevel))
	}

	locationPart, locationNote := scoreLocation(profile, posting.Location)
	if locationPart > 0 {
		evidence = append(evidence, "Location -> "+locationNote)
	}

	score := int(math.Round(skillPart + seniorityPart + locationPart))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	reason := fmt.Sprintf("%s: %d of %d required skills matched", types.BandLabel(score), matched, len(required))
	if len(required) == 0 {
		reason = types.BandLabel(score) + ": posting lists no specific skills"
	}

	return types.MatchDetails{
		Score:         score,
		Reason:        reason,
		Evidence:      evidence,
		MissingSkills: missing,
	}, nil
}

func scoreSeniority(candidate, posting types.Seniority) float64 {
	if posting == types.SeniorityUnknown {
		return seniorityNear
	}
	if posting == types.SeniorityIntern && (candidate == types.SeniorityIntern || candidate == types.SeniorityUnknown) {
		return seniorityExact
	}
	if candidate == posting {
		return seniorityExact
	}
	if candidate != types.SeniorityUnknown && (candidate-posting == 1 || posting-candidate == 1) {
		return seniorityNear
	}
	return 0
}

func scoreLocation(profile *types.CandidateProfile, postingLocation string) (float64, string) {
	if MentionsRemote(postingLocation) {
		return locationMatch, "remote"
	}
	if len(profile.Locations) == 0 {
		return locationMatch, "candidate has no location preference"
	}
	postingCities := ExtractLocations(postingLocation)
	if len(postingCities) == 0 {
		return locationUnknown, "posting location unknown"
	}
	for _, city := range postingCities {
		for _, want := range profile.Locations {
			if city == want {
				return locationMatch, city
			}
		}
	}
	return 0, ""
}

type resumeLine struct {
	raw    string
	folded string
}

func foldedLines(text string) []resumeLine {
	var lines []resumeLine
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		lines = append(lines, resumeLine{raw: raw, folded: foldText(raw)})
	}
	return lines
}

// evidenceLine 简历中第一处提到该技能的行
func evidenceLine(lines []resumeLine, skill string) string {
	t, ok := skillByName[skill]
	if !ok {
		return "listed in resume"
	}
	for _, line := range lines {
		if containsAnyTerm(line.folded, t.Aliases) {
			return truncateRunes(line.raw, maxEvidenceLineChar)
		}
	}
	return "listed in resume"
}
