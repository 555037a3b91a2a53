package parser

import (
	"testing"

	"resume-matcher/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestFindTerm(t *testing.T) {
	tests := []struct {
		text string
		term string
		want int
	}{
		{"go, python", "go", 0},
		{"i love golang", "go", -1},
		{"c++ and c#", "c++", 0},
		{"c++ and c#", "c#", 8},
		{"html5 pages", "ml", -1},
		{"mysql", "sql", -1},
		{"sql, mysql", "sql", 0},
		{"golang then go", "go", 12},
		{"", "go", -1},
		{"go", "", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, findTerm(tt.text, tt.term), "%q in %q", tt.term, tt.text)
	}
}

func TestExtractSkills(t *testing.T) {
	assert.Equal(t, []string{"Go", "Kubernetes", "PostgreSQL"},
		ExtractSkills("Experienced in Golang, Kubernetes (k8s) and PostgreSQL"))
	assert.Equal(t, []string{"Node.js"}, ExtractSkills("Node.js developer"))
	assert.Equal(t, []string{"C++", "C#"}, ExtractSkills("C++ / C#"))
	assert.Empty(t, ExtractSkills("Enthusiastic team player"))
}

func TestExtractSkillsNormalizesWidthAndCase(t *testing.T) {
	// 全角字符经 NFKC 归一化后可以匹配
	assert.Equal(t, []string{"Python"}, ExtractSkills("ＰＹＴＨＯＮ"))
}

func TestExtractLocations(t *testing.T) {
	text := "Based in NYC, open to Seattle or remote"
	assert.Equal(t, []string{"New York", "Seattle"}, ExtractLocations(text))
	assert.True(t, MentionsRemote(text))
	assert.False(t, MentionsRemote("Onsite in Austin"))
}

func TestInferSeniority(t *testing.T) {
	tests := []struct {
		text string
		want types.Seniority
	}{
		{"Software Engineer Intern", types.SeniorityIntern},
		{"Senior Backend Engineer", types.SenioritySenior},
		{"Staff Engineer", types.SeniorityStaff},
		{"Software Engineer", types.SeniorityUnknown},
		{"New Grad Software Engineer", types.SeniorityJunior},
		{"Tech Lead", types.SenioritySenior},
		{"6+ years of experience building APIs", types.SenioritySenior},
		{"3 years experience", types.SeniorityMid},
		{"Internal tools engineer", types.SeniorityUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferSeniority(tt.text), tt.text)
	}
}

func TestExtractYearsExperience(t *testing.T) {
	assert.Equal(t, 10, ExtractYearsExperience("2 years of experience with Go; 10+ years of professional experience"))
	assert.Zero(t, ExtractYearsExperience("4 years at university"))
}

func TestDecodePlainText(t *testing.T) {
	assert.Equal(t, "Café", decodePlainText([]byte{'C', 'a', 'f', 0xE9}))
	assert.Equal(t, "Go", decodePlainText([]byte{0xEF, 0xBB, 0xBF, 'G', 'o'}))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a\nb\tc", cleanText("a\r\nb\tc\x00"))
}
