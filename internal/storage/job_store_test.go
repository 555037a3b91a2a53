package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"resume-matcher/internal/storage/models"
	"resume-matcher/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB 在临时目录中打开一个 SQLite 数据库
func newTestDB(t *testing.T) *RelationalDB {
	t.Helper()
	db, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), 1)
	require.NoError(t, err, "打开测试数据库失败")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newJob(t *testing.T, owner string) *models.AnalysisJob {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return &models.AnalysisJob{
		JobID:       id.String(),
		OwnerID:     owner,
		DocumentRef: "resume/" + id.String() + "/original.pdf",
		ContentType: "application/pdf",
	}
}

func newEvent(jobID string) *models.OutboxMessage {
	payload, _ := json.Marshal(models.AnalysisJobEvent{JobID: jobID})
	return &models.OutboxMessage{
		EventType:        "analysis.job.created",
		Payload:          string(payload),
		TargetExchange:   "analysis.events",
		TargetRoutingKey: "analysis.job.created",
	}
}

func countOutbox(t *testing.T, db *RelationalDB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.DB().Model(&models.OutboxMessage{}).Count(&n).Error)
	return n
}

func TestCreateWithEventWritesJobAndOutbox(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db.DB())
	ctx := context.Background()

	job := newJob(t, "owner-1")
	require.NoError(t, store.CreateWithEvent(ctx, job, newEvent(job.JobID)))

	got, err := store.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(types.JobStatePending), got.State)
	require.NotNil(t, got.ActiveOwner)
	assert.Equal(t, "owner-1", *got.ActiveOwner)
	assert.Equal(t, 0, got.AttemptCount)
	assert.Equal(t, int64(1), countOutbox(t, db))

	var msg models.OutboxMessage
	require.NoError(t, db.DB().First(&msg).Error)
	assert.Equal(t, job.JobID, msg.AggregateID)
	assert.Equal(t, models.OutboxStatusPending, msg.Status)
}

func TestCreateWithEventRejectsSecondActiveJob(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db.DB())
	ctx := context.Background()

	first := newJob(t, "owner-1")
	require.NoError(t, store.CreateWithEvent(ctx, first, newEvent(first.JobID)))

	second := newJob(t, "owner-1")
	err := store.CreateWithEvent(ctx, second, newEvent(second.JobID))
	assert.ErrorIs(t, err, ErrActiveJobExists)

	_, err = store.Get(ctx, second.JobID)
	assert.ErrorIs(t, err, ErrJobNotFound, "被拒绝的作业不应写入")
	assert.Equal(t, int64(1), countOutbox(t, db), "事务回滚后不应留下outbox消息")

	other := newJob(t, "owner-2")
	assert.NoError(t, store.CreateWithEvent(ctx, other, newEvent(other.JobID)), "其他用户不受影响")
}

func TestTerminalJobReleasesOwner(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db.DB())
	ctx := context.Background()

	first := newJob(t, "owner-1")
	require.NoError(t, store.CreateWithEvent(ctx, first, nil))
	claimed, err := store.Claim(ctx, first.JobID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, store.Fail(ctx, first.JobID, "could not read the uploaded document"))

	_, err = store.ActiveForOwner(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrJobNotFound)

	second := newJob(t, "owner-1")
	require.NoError(t, store.CreateWithEvent(ctx, second, nil), "终态之后允许再次提交")

	active, err := store.ActiveForOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, second.JobID, active.JobID)
}

func TestClaimIsExclusive(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db.DB())
	ctx := context.Background()

	job := newJob(t, "owner-1")
	require.NoError(t, store.CreateWithEvent(ctx, job, nil))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Claim(ctx, job.JobID)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins, "只能有一个认领成功")
	got, err := store.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(types.JobStateProcessing), got.State)
	assert.Equal(t, 1, got.AttemptCount)
}

func TestClaimUnknownJob(t *testing.T) {
	store := NewJobStore(newTestDB(t).DB())
	ok, err := store.Claim(context.Background(), "missing")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestGuardedTransitions(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db.DB())
	ctx := context.Background()

	job := newJob(t, "owner-1")
	require.NoError(t, store.CreateWithEvent(ctx, job, nil))

	// pending 不能直接结束
	assert.ErrorIs(t, store.Complete(ctx, job.JobID, &types.JobResult{}), ErrInvalidTransition)
	assert.ErrorIs(t, store.Fail(ctx, job.JobID, "boom"), ErrInvalidTransition)

	claimed, err := store.Claim(ctx, job.JobID)
	require.NoError(t, err)
	require.True(t, claimed)

	result := &types.JobResult{Matches: []types.MatchResult{{
		Company: "Acme", Role: "Backend Intern",
		MatchDetails: types.MatchDetails{Score: 88, Reason: "Strong fit"},
	}}}
	require.NoError(t, store.Complete(ctx, job.JobID, result))

	// 终态不可再变更
	assert.ErrorIs(t, store.Fail(ctx, job.JobID, "late failure"), ErrInvalidTransition)
	assert.ErrorIs(t, store.Complete(ctx, job.JobID, &types.JobResult{}), ErrInvalidTransition)
	ok, err := store.Claim(ctx, job.JobID)
	require.NoError(t, err)
	assert.False(t, ok, "终态作业不能被重新认领")

	got, err := store.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(types.JobStateCompleted), got.State)
	assert.Nil(t, got.ActiveOwner)
	assert.Nil(t, got.FailureReason)

	view, err := StatusView(got)
	require.NoError(t, err)
	require.Len(t, view.Matches, 1)
	assert.Equal(t, 88, view.Matches[0].MatchDetails.Score)
	assert.NotNil(t, view.Matches[0].MatchDetails.Evidence, "列表字段不能为nil")
	assert.NotNil(t, view.Matches[0].MatchDetails.MissingSkills)
	assert.NotNil(t, view.Research)

	assert.ErrorIs(t, store.Complete(ctx, "missing", nil), ErrJobNotFound)
}

func TestFailRequiresReason(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db.DB())
	ctx := context.Background()

	job := newJob(t, "owner-1")
	require.NoError(t, store.CreateWithEvent(ctx, job, nil))
	_, err := store.Claim(ctx, job.JobID)
	require.NoError(t, err)

	assert.Error(t, store.Fail(ctx, job.JobID, ""))
	require.NoError(t, store.Fail(ctx, job.JobID, "job catalog unavailable after 3 attempts"))

	got, err := store.Get(ctx, job.JobID)
	require.NoError(t, err)
	view, err := StatusView(got)
	require.NoError(t, err)
	assert.Equal(t, types.JobStateFailed, view.Status)
	assert.Equal(t, "job catalog unavailable after 3 attempts", view.FailureReason)
	assert.Nil(t, view.Matches)
}

func TestLatestForOwner(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db.DB())
	ctx := context.Background()

	_, err := store.LatestForOwner(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrJobNotFound)

	first := newJob(t, "owner-1")
	require.NoError(t, store.CreateWithEvent(ctx, first, nil))
	_, err = store.Claim(ctx, first.JobID)
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, first.JobID, "processing timed out"))

	time.Sleep(2 * time.Millisecond)
	second := newJob(t, "owner-1")
	require.NoError(t, store.CreateWithEvent(ctx, second, nil))

	latest, err := store.LatestForOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, second.JobID, latest.JobID)

	_, err = store.GetForOwner(ctx, second.JobID, "owner-2")
	assert.ErrorIs(t, err, ErrJobNotFound, "其他用户的作业视为不存在")
}

func TestListStale(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db.DB())
	ctx := context.Background()

	base := time.Now().UTC()
	store.now = func() time.Time { return base.Add(-time.Hour) }

	old := newJob(t, "owner-1")
	require.NoError(t, store.CreateWithEvent(ctx, old, nil))
	_, err := store.Claim(ctx, old.JobID)
	require.NoError(t, err)

	stuckPending := newJob(t, "owner-2")
	require.NoError(t, store.CreateWithEvent(ctx, stuckPending, nil))

	store.now = func() time.Time { return base }
	fresh := newJob(t, "owner-3")
	require.NoError(t, store.CreateWithEvent(ctx, fresh, nil))
	_, err = store.Claim(ctx, fresh.JobID)
	require.NoError(t, err)

	stale, err := store.ListStale(ctx, base.Add(-15*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.JobID, stale[0].JobID)

	pending, err := store.ListPendingBefore(ctx, base.Add(-15*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stuckPending.JobID, pending[0].JobID)
}

// TestTimestampsReadBack 时间列在 SQLite 下也必须能读回 time.Time
func TestTimestampsReadBack(t *testing.T) {
	db := newTestDB(t)
	store := NewJobStore(db.DB())
	users := NewUserStore(db.DB())
	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	job := newJob(t, "owner-ts")
	require.NoError(t, store.CreateWithEvent(ctx, job, newEvent(job.JobID)))
	claimed, err := store.Claim(ctx, job.JobID)
	require.NoError(t, err)
	require.True(t, claimed)

	got, err := store.Get(ctx, job.JobID)
	require.NoError(t, err, "读取作业不应因时间列扫描失败")
	assert.True(t, got.CreatedAt.After(before))
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	latest, err := store.LatestForOwner(ctx, "owner-ts")
	require.NoError(t, err)
	assert.Equal(t, job.JobID, latest.JobID)

	now := time.Now()
	require.NoError(t, db.DB().Model(&models.OutboxMessage{}).
		Where("aggregate_id = ?", job.JobID).
		Updates(map[string]interface{}{"status": models.OutboxStatusSent, "processed_at": now}).Error)
	var msg models.OutboxMessage
	require.NoError(t, db.DB().Where("aggregate_id = ?", job.JobID).Take(&msg).Error)
	require.NotNil(t, msg.ProcessedAt)
	assert.WithinDuration(t, now, *msg.ProcessedAt, time.Second)
	assert.True(t, msg.CreatedAt.After(before))

	_, created, err := users.FindOrCreate(ctx, "ext-ts", "ts@example.com")
	require.NoError(t, err)
	require.True(t, created)
	user, created, err := users.FindOrCreate(ctx, "ext-ts", "ts@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, user.CreatedAt.After(before))
}
