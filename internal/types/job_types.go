package types

import "time"

// JobState 分析作业的生命周期状态
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// IsTerminal 终态之后作业不可再变更
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Valid 是否为已知状态
func (s JobState) Valid() bool {
	switch s {
	case JobStatePending, JobStateProcessing, JobStateCompleted, JobStateFailed:
		return true
	}
	return false
}

// Posting 从岗位来源抓取的一条岗位，只在一次作业执行中存在
type Posting struct {
	Company      string `json:"company"`
	Role         string `json:"role"`
	Location     string `json:"location"`
	ApplyLink    string `json:"link"`
	Requirements string `json:"requirements,omitempty"`
}

// MatchDetails 单个岗位的匹配解释
type MatchDetails struct {
	Score         int      `json:"score"`
	Reason        string   `json:"reason"`
	Evidence      []string `json:"evidence"`
	MissingSkills []string `json:"missing_skills"`
}

// Normalize 将分数截断到 [0,100]，并保证列表字段不为 nil
func (d *MatchDetails) Normalize() {
	if d.Score < 0 {
		d.Score = 0
	}
	if d.Score > 100 {
		d.Score = 100
	}
	if d.Evidence == nil {
		d.Evidence = []string{}
	}
	if d.MissingSkills == nil {
		d.MissingSkills = []string{}
	}
	if d.Reason == "" {
		d.Reason = BandLabel(d.Score)
	}
}

// BandLabel 分数段对应的文字描述
func BandLabel(score int) string {
	switch {
	case score >= 90:
		return "Exceptional fit"
	case score >= 75:
		return "Strong fit"
	case score >= 60:
		return "Moderate fit"
	case score >= 40:
		return "Weak fit"
	default:
		return "Poor fit"
	}
}

// MatchResult 一个岗位及其匹配结果
type MatchResult struct {
	Company      string       `json:"company"`
	Role         string       `json:"role"`
	Location     string       `json:"location"`
	ApplyLink    string       `json:"link"`
	MatchDetails MatchDetails `json:"match_details"`
}

// ResearchNote 公司调研摘要
type ResearchNote struct {
	Content string `json:"content"`
	URL     string `json:"url"`
}

// JobResult 已完成作业的结果，随状态变更一起写入
type JobResult struct {
	Matches  []MatchResult             `json:"matches"`
	Research map[string][]ResearchNote `json:"research"`
}

// Normalize 保证 JSON 编码时列表和 map 不为 null
func (r *JobResult) Normalize() {
	if r.Matches == nil {
		r.Matches = []MatchResult{}
	}
	for i := range r.Matches {
		r.Matches[i].MatchDetails.Normalize()
	}
	if r.Research == nil {
		r.Research = map[string][]ResearchNote{}
	}
}

// JobStatusView 状态查询返回给调用者的快照
type JobStatusView struct {
	JobID         string                    `json:"job_id"`
	Status        JobState                  `json:"status"`
	Matches       []MatchResult             `json:"matches,omitempty"`
	Research      map[string][]ResearchNote `json:"research,omitempty"`
	FailureReason string                    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}
