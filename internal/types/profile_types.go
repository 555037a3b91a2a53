package types

// Seniority 候选人或岗位的级别，按资历递增
type Seniority int

const (
	SeniorityUnknown Seniority = iota
	SeniorityIntern
	SeniorityJunior
	SeniorityMid
	SenioritySenior
	SeniorityStaff
)

var seniorityNames = map[Seniority]string{
	SeniorityUnknown: "unknown",
	SeniorityIntern:  "intern",
	SeniorityJunior:  "junior",
	SeniorityMid:     "mid",
	SenioritySenior:  "senior",
	SeniorityStaff:   "staff",
}

func (s Seniority) String() string {
	if name, ok := seniorityNames[s]; ok {
		return name
	}
	return "unknown"
}

// CandidateProfile 从简历中提取的候选人画像
type CandidateProfile struct {
	Skills          []string  `json:"skills"`
	Seniority       Seniority `json:"-"`
	YearsExperience int       `json:"years_experience"`
	Locations       []string  `json:"locations"`
	RemoteOK        bool      `json:"remote_ok"`
	// Text 是归一化后的全文，按行保存，用于生成匹配证据
	Text string `json:"-"`
}

// HasSkill 画像中是否包含某项技能（技能名已归一化）
func (p *CandidateProfile) HasSkill(skill string) bool {
	for _, s := range p.Skills {
		if s == skill {
			return true
		}
	}
	return false
}
