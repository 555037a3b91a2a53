package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"resume-matcher/internal/constants"
	"resume-matcher/internal/storage/models"
	"resume-matcher/internal/tracing"
	"resume-matcher/internal/types"
	"resume-matcher/pkg/utils"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxSize = 5 * 1024 * 1024
	defaultLockTTL = 30 * time.Second
)

// Intake 接收上传的简历，持久化原件并创建 pending 作业。
// 不在请求路径上做任何分析，作业通过 outbox 事件异步派发。
type Intake struct {
	jobs   JobRepository
	docs   DocumentStore
	locker UploadLocker

	maxSize    int64
	allowed    map[string]struct{}
	lockTTL    time.Duration
	exchange   string
	routingKey string

	logger zerolog.Logger
	tracer trace.Tracer
	newID  func() (string, error)
}

// NewIntake 创建提交入口
func NewIntake(jobs JobRepository, docs DocumentStore, opts ...IntakeOption) *Intake {
	in := &Intake{
		jobs:       jobs,
		docs:       docs,
		maxSize:    defaultMaxSize,
		lockTTL:    defaultLockTTL,
		exchange:   "analysis.events",
		routingKey: constants.EventAnalysisJobCreated,
		logger:     zerolog.Nop(),
		tracer:     otel.Tracer("resume-matcher/intake"),
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
	in.allowed = map[string]struct{}{
		"application/pdf": {},
		"text/plain":      {},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Submit 校验并登记一份简历，返回新作业的 ID。
// size 是调用方声明的大小（如 multipart 头），<= 0 时以实际字节数为准；两者取大值校验上限。
// 同一用户已有 pending 或 processing 作业时拒绝（冲突）。
func (in *Intake) Submit(ctx context.Context, ownerID string, data []byte, contentType string, size int64) (string, error) {
	size = max(size, int64(len(data)))
	ctx, span := in.tracer.Start(ctx, "intake.Submit",
		trace.WithAttributes(attribute.Int64("document.size", size)))
	defer span.End()

	jobID, err := in.submit(ctx, ownerID, data, contentType, size)
	if err != nil {
		tracing.RecordError(span, err, intakeErrorType(err))
		span.SetStatus(codes.Error, string(KindOf(err)))
		return "", err
	}
	span.SetAttributes(attribute.String("job.id", jobID))
	return jobID, nil
}

func (in *Intake) submit(ctx context.Context, ownerID string, data []byte, contentType string, size int64) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", NewAuthError("missing owner identity")
	}

	ct := normalizeContentType(contentType)
	if _, ok := in.allowed[ct]; !ok {
		return "", NewValidationError(ErrInvalidType, fmt.Sprintf("%q is not accepted", contentType))
	}
	if size > in.maxSize {
		return "", NewValidationError(ErrTooLarge, fmt.Sprintf("%d bytes exceeds limit of %d", size, in.maxSize))
	}
	if len(data) == 0 {
		return "", NewValidationError(ErrEmptyDocument, "")
	}

	log := in.logger.With().Str("owner_id", ownerID).Logger()

	// 跨实例的快速互斥，最终一致性由数据库唯一索引保证
	if in.locker != nil {
		lockValue, err := in.locker.AcquireUploadLock(ctx, ownerID, in.lockTTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("获取上传锁失败，继续依赖数据库约束")
		case lockValue == "":
			return "", NewConflictError(ownerID)
		default:
			defer func() {
				if err := in.locker.ReleaseUploadLock(context.WithoutCancel(ctx), ownerID, lockValue); err != nil {
					log.Warn().Err(err).Msg("释放上传锁失败")
				}
			}()
		}
	}

	// 先检查，避免为注定冲突的请求上传原件
	if _, err := in.jobs.ActiveForOwner(ctx, ownerID); err == nil {
		return "", NewConflictError(ownerID)
	} else if !errors.Is(err, ErrJobNotFound) {
		return "", fmt.Errorf("查询活跃作业失败: %w", err)
	}

	jobID, err := in.newID()
	if err != nil {
		return "", fmt.Errorf("生成作业ID失败: %w", err)
	}

	objectKey, err := in.docs.PutDocument(ctx, jobID, ct, data)
	if err != nil {
		return "", fmt.Errorf("保存简历原件失败: %w", err)
	}

	payload, err := json.Marshal(models.AnalysisJobEvent{JobID: jobID, OwnerID: ownerID})
	if err != nil {
		in.discardDocument(ctx, objectKey, log)
		return "", fmt.Errorf("序列化作业事件失败: %w", err)
	}

	job := &models.AnalysisJob{
		JobID:       jobID,
		OwnerID:     ownerID,
		State:       string(types.JobStatePending),
		DocumentRef: objectKey,
		DocumentMD5: utils.CalculateMD5(data),
		ContentType: ct,
	}
	event := &models.OutboxMessage{
		EventType:        constants.EventAnalysisJobCreated,
		Payload:          string(payload),
		TargetExchange:   in.exchange,
		TargetRoutingKey: in.routingKey,
	}

	if err := in.jobs.CreateWithEvent(ctx, job, event); err != nil {
		in.discardDocument(ctx, objectKey, log)
		if errors.Is(err, ErrActiveJobExists) {
			return "", NewConflictError(ownerID)
		}
		return "", fmt.Errorf("创建分析作业失败: %w", err)
	}

	log.Info().Str("job_id", jobID).Str("content_type", ct).Int("size", len(data)).Msg("已创建分析作业")
	return jobID, nil
}

func (in *Intake) discardDocument(ctx context.Context, objectKey string, log zerolog.Logger) {
	if err := in.docs.DeleteDocument(context.WithoutCancel(ctx), objectKey); err != nil {
		log.Warn().Err(err).Str("object_key", objectKey).Msg("清理孤立的简历原件失败")
	}
}

// normalizeContentType 去掉参数并转小写，例如 "text/plain; charset=utf-8" -> "text/plain"
func normalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func intakeErrorType(err error) tracing.ErrorType {
	switch KindOf(err) {
	case KindValidation, KindConflict:
		return tracing.ErrorTypeValidation
	case KindAuth:
		return tracing.ErrorTypePermission
	default:
		return tracing.ErrorTypeDB
	}
}
