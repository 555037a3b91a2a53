package processor

import (
	"context"
	"time"

	"resume-matcher/internal/storage/models"
	"resume-matcher/internal/types"
)

//
// 流水线组件接口
//

// Analyzer 从上传的文档中提取候选人画像。失败不重试。
type Analyzer interface {
	Analyze(ctx context.Context, doc []byte, contentType string) (*types.CandidateProfile, error)
}

// PostingSource 岗位来源。瞬时失败应使用 Transient 包装以便重试。
type PostingSource interface {
	FetchPostings(ctx context.Context) ([]types.Posting, error)
}

// Matcher 计算候选人与单个岗位的匹配结果
type Matcher interface {
	Match(ctx context.Context, profile *types.CandidateProfile, posting types.Posting) (types.MatchDetails, error)
}

// Researcher 为高分岗位的公司做背景调研（可选）
type Researcher interface {
	Research(ctx context.Context, company string) ([]types.ResearchNote, error)
}

//
// 存储相关接口
//

// JobRepository 作业状态存储，由 storage.JobStore 实现
type JobRepository interface {
	CreateWithEvent(ctx context.Context, job *models.AnalysisJob, event *models.OutboxMessage) error
	Claim(ctx context.Context, jobID string) (bool, error)
	Complete(ctx context.Context, jobID string, result *types.JobResult) error
	Fail(ctx context.Context, jobID string, reason string) error
	Get(ctx context.Context, jobID string) (*models.AnalysisJob, error)
	ActiveForOwner(ctx context.Context, ownerID string) (*models.AnalysisJob, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]models.AnalysisJob, error)
	ListPendingBefore(ctx context.Context, olderThan time.Time, limit int) ([]models.AnalysisJob, error)
}

// DocumentStore 简历原件存储，由 storage.MinIO 实现
type DocumentStore interface {
	PutDocument(ctx context.Context, jobID, contentType string, data []byte) (string, error)
	GetDocument(ctx context.Context, objectKey string) ([]byte, error)
	DeleteDocument(ctx context.Context, objectKey string) error
}

// UploadLocker 同一用户的上传互斥，由 storage.Redis 实现
type UploadLocker interface {
	AcquireUploadLock(ctx context.Context, ownerID string, ttl time.Duration) (string, error)
	ReleaseUploadLock(ctx context.Context, ownerID, lockValue string) error
}

// JobProcessor 处理一个已派发的作业
type JobProcessor interface {
	Process(ctx context.Context, jobID string) error
}
