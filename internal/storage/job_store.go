package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-matcher/internal/storage/models"
	"resume-matcher/internal/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrJobNotFound 作业不存在
	ErrJobNotFound = errors.New("analysis job not found")
	// ErrActiveJobExists 用户已有一个未结束的作业
	ErrActiveJobExists = errors.New("an analysis job is already in progress for this user")
	// ErrInvalidTransition 源状态不允许该状态变更，数据未被修改
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// JobStore 作业状态的唯一权威存储。所有状态变更都是带源状态条件的单条 UPDATE。
type JobStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewJobStore 创建作业存储
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CreateWithEvent 在同一事务中写入 pending 作业和对应的 outbox 事件
func (s *JobStore) CreateWithEvent(ctx context.Context, job *models.AnalysisJob, event *models.OutboxMessage) error {
	if job == nil || job.JobID == "" || job.OwnerID == "" {
		return fmt.Errorf("作业缺少 job_id 或 owner_id")
	}

	now := s.now()
	job.State = string(types.JobStatePending)
	job.ActiveOwner = models.StringPtr(job.OwnerID)
	job.AttemptCount = 0
	job.CreatedAt = now
	job.UpdatedAt = now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		if event != nil {
			event.AggregateID = job.JobID
			if event.Status == "" {
				event.Status = models.OutboxStatusPending
			}
			event.CreatedAt = now
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("写入outbox消息失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrActiveJobExists
		}
		return fmt.Errorf("创建分析作业失败: %w", err)
	}
	return nil
}

// Claim 原子地将 pending 作业置为 processing。返回 true 表示调用者获得了该作业。
func (s *JobStore) Claim(ctx context.Context, jobID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.AnalysisJob{}).
		Where("job_id = ? AND state = ?", jobID, types.JobStatePending).
		Updates(map[string]interface{}{
			"state":         string(types.JobStateProcessing),
			"attempt_count": gorm.Expr("attempt_count + ?", 1),
			"updated_at":    s.now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("认领作业 %s 失败: %w", jobID, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	exists, err := s.exists(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrJobNotFound
	}
	return false, nil
}

// Complete processing -> completed，结果与状态在同一条 UPDATE 中写入
func (s *JobStore) Complete(ctx context.Context, jobID string, result *types.JobResult) error {
	if result == nil {
		result = &types.JobResult{}
	}
	result.Normalize()
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化作业结果失败: %w", err)
	}
	return s.finish(ctx, jobID, types.JobStateCompleted, map[string]interface{}{
		"result": datatypes.JSON(payload),
	})
}

// Fail processing -> failed，原因不能为空
func (s *JobStore) Fail(ctx context.Context, jobID string, reason string) error {
	if reason == "" {
		return fmt.Errorf("失败原因不能为空")
	}
	return s.finish(ctx, jobID, types.JobStateFailed, map[string]interface{}{
		"failure_reason": reason,
	})
}

func (s *JobStore) finish(ctx context.Context, jobID string, to types.JobState, updates map[string]interface{}) error {
	updates["state"] = string(to)
	updates["active_owner"] = nil
	updates["updated_at"] = s.now()

	res := s.db.WithContext(ctx).Model(&models.AnalysisJob{}).
		Where("job_id = ? AND state = ?", jobID, types.JobStateProcessing).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("更新作业 %s 为 %s 失败: %w", jobID, to, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	exists, err := s.exists(ctx, jobID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrJobNotFound
	}
	return ErrInvalidTransition
}

func (s *JobStore) exists(ctx context.Context, jobID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AnalysisJob{}).Where("job_id = ?", jobID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("查询作业 %s 失败: %w", jobID, err)
	}
	return count > 0, nil
}

// Get 读取单个作业的快照
func (s *JobStore) Get(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("查询作业 %s 失败: %w", jobID, err)
	}
	return &job, nil
}

// GetForOwner 读取属于指定用户的作业，不属于该用户时视为不存在
func (s *JobStore) GetForOwner(ctx context.Context, jobID, ownerID string) (*models.AnalysisJob, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// LatestForOwner 用户最近一次提交的作业
func (s *JobStore) LatestForOwner(ctx context.Context, ownerID string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("job_id DESC").
		Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("查询用户 %s 的最新作业失败: %w", ownerID, err)
	}
	return &job, nil
}

// ActiveForOwner 用户未结束的作业，没有时返回 ErrJobNotFound
func (s *JobStore) ActiveForOwner(ctx context.Context, ownerID string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := s.db.WithContext(ctx).Where("active_owner = ?", ownerID).Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("查询用户 %s 的活跃作业失败: %w", ownerID, err)
	}
	return &job, nil
}

// ListStale 处于 processing 且 updated_at 早于 olderThan 的作业
func (s *JobStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]models.AnalysisJob, error) {
	return s.listByStateBefore(ctx, types.JobStateProcessing, olderThan, limit)
}

// ListPendingBefore 长时间未被认领的 pending 作业，用于重新派发
func (s *JobStore) ListPendingBefore(ctx context.Context, olderThan time.Time, limit int) ([]models.AnalysisJob, error) {
	return s.listByStateBefore(ctx, types.JobStatePending, olderThan, limit)
}

func (s *JobStore) listByStateBefore(ctx context.Context, state types.JobState, olderThan time.Time, limit int) ([]models.AnalysisJob, error) {
	if limit <= 0 {
		limit = 100
	}
	var jobs []models.AnalysisJob
	err := s.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", state, olderThan.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("查询 %s 状态的超时作业失败: %w", state, err)
	}
	return jobs, nil
}

// StatusView 将作业行转换为对外的状态快照。结果只在 completed 时解码，失败原因只在 failed 时返回。
func StatusView(job *models.AnalysisJob) (*types.JobStatusView, error) {
	view := &types.JobStatusView{
		JobID:     job.JobID,
		Status:    types.JobState(job.State),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}

	switch view.Status {
	case types.JobStateCompleted:
		result := types.JobResult{}
		if len(job.Result) > 0 {
			if err := json.Unmarshal(job.Result, &result); err != nil {
				return nil, fmt.Errorf("解析作业 %s 的结果失败: %w", job.JobID, err)
			}
		}
		result.Normalize()
		view.Matches = result.Matches
		view.Research = result.Research
	case types.JobStateFailed:
		if job.FailureReason != nil {
			view.FailureReason = *job.FailureReason
		}
	}
	return view, nil
}
