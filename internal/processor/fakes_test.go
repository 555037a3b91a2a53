package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"resume-matcher/internal/storage"
	"resume-matcher/internal/types"

	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

func newTestStore(t *testing.T) (*storage.JobStore, *storage.RelationalDB) {
	t.Helper()
	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewJobStore(db.DB()), db
}

// memDocs 内存文档存储，failGets 次读取失败后恢复
type memDocs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failPut  bool
	failGets int
	gets     int
	deleted  []string
}

func newMemDocs() *memDocs {
	return &memDocs{objects: make(map[string][]byte)}
}

func (m *memDocs) PutDocument(_ context.Context, jobID, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return "", errors.New("bucket offline")
	}
	key := storage.DocumentObjectKey(jobID, contentType)
	m.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *memDocs) GetDocument(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failGets > 0 {
		m.failGets--
		return nil, errors.New("connection reset")
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (m *memDocs) DeleteDocument(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memDocs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type stubAnalyzer struct {
	mu      sync.Mutex
	profile *types.CandidateProfile
	err     error
	calls   int
}

func (a *stubAnalyzer) Analyze(_ context.Context, doc []byte, _ string) (*types.CandidateProfile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	p := *a.profile
	p.Text = string(doc)
	return &p, nil
}

type stubSource struct {
	postings []types.Posting
	errs     []error
	calls    int
}

func (s *stubSource) FetchPostings(context.Context) ([]types.Posting, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.postings, nil
}

// scoreMatcher 按公司名返回固定分数
type scoreMatcher struct {
	scores map[string]int
	errs   map[string]error
	calls  int
}

func (m *scoreMatcher) Match(_ context.Context, _ *types.CandidateProfile, p types.Posting) (types.MatchDetails, error) {
	m.calls++
	if err, ok := m.errs[p.Company]; ok {
		return types.MatchDetails{}, err
	}
	return types.MatchDetails{Score: m.scores[p.Company]}, nil
}

type stubResearcher struct {
	mu        sync.Mutex
	companies []string
	err       error
}

func (r *stubResearcher) Research(_ context.Context, company string) ([]types.ResearchNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies = append(r.companies, company)
	if r.err != nil {
		return nil, r.err
	}
	return []types.ResearchNote{{Content: company + " is hiring", URL: "https://example.com/" + company}}, nil
}

type stubLocker struct {
	held    map[string]string
	err     error
	release int
}

func (l *stubLocker) AcquireUploadLock(_ context.Context, owner string, _ time.Duration) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	if _, ok := l.held[owner]; ok {
		return "", nil
	}
	l.held[owner] = "v-" + owner
	return l.held[owner], nil
}

func (l *stubLocker) ReleaseUploadLock(_ context.Context, owner, value string) error {
	if l.held[owner] == value {
		delete(l.held, owner)
		l.release++
	}
	return nil
}

func postings(companies ...string) []types.Posting {
	out := make([]types.Posting, 0, len(companies))
	for _, c := range companies {
		out = append(out, types.Posting{Company: c, Role: "Software Engineer Intern", Location: "Remote", ApplyLink: "https://jobs.example.com/" + c})
	}
	return out
}
