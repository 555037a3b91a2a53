package parser

import (
	"regexp"
	"sort"
	"strconv"

	"resume-matcher/internal/types"
)

// term 词表中的一项：对外展示名和全部别名（已折叠为小写）
type term struct {
	Name    string
	Aliases []string
}

// skillLexicon 技能词表，顺序即同位置出现时的优先顺序
var skillLexicon = []term{
	{"Go", []string{"go", "golang"}},
	{"Python", []string{"python"}},
	{"Java", []string{"java"}},
	{"JavaScript", []string{"javascript", "ecmascript"}},
	{"TypeScript", []string{"typescript"}},
	{"C++", []string{"c++", "cpp"}},
	{"C#", []string{"c#", "csharp", ".net"}},
	{"Rust", []string{"rust"}},
	{"Ruby", []string{"ruby", "ruby on rails", "rails"}},
	{"Kotlin", []string{"kotlin"}},
	{"Swift", []string{"swift"}},
	{"Scala", []string{"scala"}},
	{"PHP", []string{"php"}},
	{"SQL", []string{"sql"}},
	{"PostgreSQL", []string{"postgresql", "postgres"}},
	{"MySQL", []string{"mysql"}},
	{"MongoDB", []string{"mongodb", "mongo"}},
	{"Redis", []string{"redis"}},
	{"Kafka", []string{"kafka"}},
	{"RabbitMQ", []string{"rabbitmq"}},
	{"Docker", []string{"docker"}},
	{"Kubernetes", []string{"kubernetes", "k8s"}},
	{"AWS", []string{"aws", "amazon web services"}},
	{"GCP", []string{"gcp", "google cloud"}},
	{"Azure", []string{"azure"}},
	{"Terraform", []string{"terraform"}},
	{"Linux", []string{"linux", "unix"}},
	{"Git", []string{"git"}},
	{"React", []string{"react", "reactjs", "react.js"}},
	{"Node.js", []string{"node.js", "nodejs", "node"}},
	{"Vue", []string{"vue", "vue.js"}},
	{"Angular", []string{"angular"}},
	{"Django", []string{"django"}},
	{"Flask", []string{"flask"}},
	{"Spring", []string{"spring boot", "spring"}},
	{"GraphQL", []string{"graphql"}},
	{"REST", []string{"rest api", "rest apis", "restful"}},
	{"gRPC", []string{"grpc"}},
	{"HTML", []string{"html"}},
	{"CSS", []string{"css"}},
	{"Machine Learning", []string{"machine learning", "ml"}},
	{"Deep Learning", []string{"deep learning"}},
	{"PyTorch", []string{"pytorch"}},
	{"TensorFlow", []string{"tensorflow"}},
	{"Pandas", []string{"pandas"}},
	{"NumPy", []string{"numpy"}},
	{"Spark", []string{"spark", "pyspark"}},
	{"NLP", []string{"nlp", "natural language processing"}},
	{"Computer Vision", []string{"computer vision"}},
	{"LLM", []string{"llm", "llms", "large language models"}},
	{"Data Analysis", []string{"data analysis", "data analytics"}},
	{"CI/CD", []string{"ci/cd", "continuous integration"}},
	{"Microservices", []string{"microservices", "microservice"}},
	{"Distributed Systems", []string{"distributed systems"}},
	{"Embedded Systems", []string{"embedded systems", "embedded software", "firmware"}},
}

// locationLexicon 城市词表。remote 单独处理。
var locationLexicon = []term{
	{"New York", []string{"new york", "nyc", "new york city"}},
	{"San Francisco", []string{"san francisco", "sf", "bay area"}},
	{"Seattle", []string{"seattle"}},
	{"Austin", []string{"austin"}},
	{"Boston", []string{"boston"}},
	{"Chicago", []string{"chicago"}},
	{"Los Angeles", []string{"los angeles"}},
	{"Mountain View", []string{"mountain view"}},
	{"San Jose", []string{"san jose"}},
	{"Palo Alto", []string{"palo alto"}},
	{"Sunnyvale", []string{"sunnyvale"}},
	{"Menlo Park", []string{"menlo park"}},
	{"Redmond", []string{"redmond"}},
	{"Denver", []string{"denver"}},
	{"Atlanta", []string{"atlanta"}},
	{"Washington DC", []string{"washington dc", "washington, dc", "washington d.c."}},
	{"Pittsburgh", []string{"pittsburgh"}},
	{"Philadelphia", []string{"philadelphia"}},
	{"San Diego", []string{"san diego"}},
	{"Dallas", []string{"dallas"}},
	{"Houston", []string{"houston"}},
	{"Miami", []string{"miami"}},
	{"Portland", []string{"portland"}},
	{"Raleigh", []string{"raleigh"}},
	{"Salt Lake City", []string{"salt lake city"}},
	{"Toronto", []string{"toronto"}},
	{"Vancouver", []string{"vancouver"}},
	{"London", []string{"london"}},
}

var remoteTerms = []string{"remote", "work from home", "wfh"}

// seniorityTerms 级别关键词
var seniorityTerms = []struct {
	level types.Seniority
	terms []string
}{
	{types.SeniorityIntern, []string{"intern", "internship", "co-op", "coop"}},
	{types.SeniorityJunior, []string{"junior", "jr.", "entry level", "entry-level", "new grad", "new graduate"}},
	{types.SeniorityMid, []string{"mid-level", "mid level", "intermediate"}},
	{types.SenioritySenior, []string{"senior", "sr.", "lead"}},
	{types.SeniorityStaff, []string{"staff", "principal", "distinguished"}},
}

var yearsPattern = regexp.MustCompile(`(\d{1,2})\s*\+?\s*(?:years?|yrs?)(?:\s+of)?\s+(?:professional\s+|industry\s+|relevant\s+|work\s+|hands-on\s+)?experience`)

var skillByName = func() map[string]term {
	m := make(map[string]term, len(skillLexicon))
	for _, t := range skillLexicon {
		m[t.Name] = t
	}
	return m
}()

type hit struct {
	name string
	pos  int
	rank int
}

// matchTerms 返回在 folded 文本中出现的词表项，按首次出现位置排序
func matchTerms(folded string, lexicon []term) []string {
	var hits []hit
	for rank, t := range lexicon {
		pos := -1
		for _, alias := range t.Aliases {
			if i := findTerm(folded, alias); i >= 0 && (pos < 0 || i < pos) {
				pos = i
			}
		}
		if pos >= 0 {
			hits = append(hits, hit{name: t.Name, pos: pos, rank: rank})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].rank < hits[j].rank
	})
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.name)
	}
	return names
}

// ExtractSkills 文本中提到的技能，按出现顺序
func ExtractSkills(text string) []string {
	return matchTerms(foldText(text), skillLexicon)
}

// ExtractLocations 文本中提到的城市，按出现顺序
func ExtractLocations(text string) []string {
	return matchTerms(foldText(text), locationLexicon)
}

// MentionsRemote 文本是否提到远程
func MentionsRemote(text string) bool {
	return containsAnyTerm(foldText(text), remoteTerms)
}

// ExtractYearsExperience "N+ years of experience" 中最大的 N
func ExtractYearsExperience(text string) int {
	max := 0
	for _, m := range yearsPattern.FindAllStringSubmatch(foldText(text), -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max && n < 60 {
			max = n
		}
	}
	return max
}

// InferSeniority 从文本推断级别：有工作年限时按年限，否则取最先出现的级别关键词
func InferSeniority(text string) types.Seniority {
	if years := ExtractYearsExperience(text); years > 0 {
		return seniorityForYears(years)
	}

	folded := foldText(text)
	best, bestPos := types.SeniorityUnknown, -1
	for _, group := range seniorityTerms {
		for _, t := range group.terms {
			if i := findTerm(folded, t); i >= 0 && (bestPos < 0 || i < bestPos) {
				best, bestPos = group.level, i
			}
		}
	}
	return best
}

func seniorityForYears(years int) types.Seniority {
	switch {
	case years >= 8:
		return types.SeniorityStaff
	case years >= 5:
		return types.SenioritySenior
	case years >= 2:
		return types.SeniorityMid
	default:
		return types.SeniorityJunior
	}
}
