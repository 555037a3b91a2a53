package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resume-matcher/internal/constants"
	"resume-matcher/internal/storage"
	"resume-matcher/internal/tracing"
	"resume-matcher/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultStaleAfter        = 15 * time.Minute
	defaultResearchThreshold = 80
	maxResearchCompanies     = 5
	reapBatchSize            = 100
)

// RequeueFunc 重新派发一个 pending 作业
type RequeueFunc func(ctx context.Context, jobID, ownerID string) error

// Orchestrator 驱动单个作业走完分析流水线：
// 认领 -> 读取原件 -> 提取画像 -> 抓取岗位 -> 评分排序 -> 公司调研 -> 写入终态。
// 作业一旦被认领，必定以 completed 或 failed 结束（进程崩溃时由 ReapStale 兜底）。
type Orchestrator struct {
	jobs       JobRepository
	docs       DocumentStore
	analyzer   Analyzer
	source     PostingSource
	matcher    Matcher
	researcher Researcher
	requeue    RequeueFunc

	retry             RetryPolicy
	researchThreshold int
	staleAfter        time.Duration
	jobTimeout        time.Duration

	logger zerolog.Logger
	tracer trace.Tracer
}

// NewOrchestrator 创建编排器
func NewOrchestrator(jobs JobRepository, docs DocumentStore, analyzer Analyzer, source PostingSource, matcher Matcher, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		jobs:              jobs,
		docs:              docs,
		analyzer:          analyzer,
		source:            source,
		matcher:           matcher,
		retry:             DefaultRetryPolicy(),
		researchThreshold: defaultResearchThreshold,
		staleAfter:        defaultStaleAfter,
		logger:            zerolog.Nop(),
		tracer:            otel.Tracer("resume-matcher/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// outcome 一次执行的结果，二者恰有一个有效
type outcome struct {
	result  *types.JobResult
	reason  string
	err     error
	errType tracing.ErrorType
}

// Process 处理一个已派发的作业。
// 作业不存在或已被其他 worker 认领时返回 nil；
// 仅当作业存储不可用时返回 transient 错误，调用方可据此决定是否重新投递。
func (o *Orchestrator) Process(ctx context.Context, jobID string) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Process",
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	log := o.logger.With().Str("job_id", jobID).Logger()

	claimed, err := o.jobs.Claim(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			log.Warn().Msg("作业不存在，忽略该事件")
			return nil
		}
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return Transient("claim", err)
	}
	if !claimed {
		log.Debug().Msg("作业已被认领或已结束，跳过")
		span.SetAttributes(attribute.Bool("job.claimed", false))
		return nil
	}
	span.SetAttributes(attribute.Bool("job.claimed", true))
	log.Info().Msg("开始处理分析作业")

	runCtx := ctx
	if o.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.jobTimeout)
		defer cancel()
	}

	out := o.run(runCtx, jobID, log)

	// 终态写入不受作业时限影响
	writeCtx := context.WithoutCancel(ctx)
	if out.result != nil {
		err = o.jobs.Complete(writeCtx, jobID, out.result)
	} else {
		if out.err != nil {
			tracing.RecordError(span, out.err, out.errType)
		}
		span.SetAttributes(attribute.String("job.failure_reason", tracing.SafeReason(out.reason)))
		err = o.jobs.Fail(writeCtx, jobID, out.reason)
	}

	switch {
	case err == nil:
		if out.result != nil {
			span.SetStatus(codes.Ok, "completed")
			log.Info().Int("matches", len(out.result.Matches)).Int("researched", len(out.result.Research)).Msg("分析作业完成")
		} else {
			span.SetStatus(codes.Error, "failed")
			log.Warn().Str("reason", out.reason).Msg("分析作业失败")
		}
		return nil
	case errors.Is(err, storage.ErrInvalidTransition), errors.Is(err, ErrJobNotFound):
		// 处理期间作业被回收，结果丢弃
		log.Warn().Err(err).Msg("作业状态已被其他流程改变，丢弃本次结果")
		return nil
	default:
		tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeDB, attribute.Bool("job.completed", out.result != nil))
		log.Error().Err(err).Msg("写入作业终态失败")
		return Transient("finish", err)
	}
}

func (o *Orchestrator) run(ctx context.Context, jobID string, log zerolog.Logger) outcome {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return outcome{reason: fmt.Sprintf("could not load job: %v", err)}
	}

	doc, attempts, err := retryCall(ctx, o.retry, log, "document", func(ctx context.Context) ([]byte, error) {
		data, err := o.docs.GetDocument(ctx, job.DocumentRef)
		if err != nil {
			return nil, Transient("document", err)
		}
		return data, nil
	})
	if err != nil {
		return outcome{
			reason:  o.exhaustedReason(ctx, constants.ReasonDocumentUnavailable, attempts, err),
			err:     err,
			errType: tracing.ErrorTypeObjectStorage,
		}
	}

	// 提取失败不重试，无论分析器返回的错误本身如何分类
	profile, err := o.analyzer.Analyze(ctx, doc, job.ContentType)
	if err != nil {
		return outcome{
			reason:  fmt.Sprintf("%s: %v", constants.ReasonUnreadableDocument, err),
			err:     Terminal("analyze", fmt.Errorf("%w: %w", ErrTerminalAnalysis, err)),
			errType: tracing.ErrorTypeAnalysis,
		}
	}
	log.Debug().Int("skills", len(profile.Skills)).Str("seniority", profile.Seniority.String()).Msg("已提取候选人画像")

	postings, attempts, err := retryCall(ctx, o.retry, log, "postings", o.source.FetchPostings)
	if err != nil {
		return outcome{reason: o.exhaustedReason(ctx, constants.ReasonCatalogUnavailable, attempts, err)}
	}
	if len(postings) == 0 {
		return outcome{reason: constants.ReasonEmptyCatalog}
	}

	matcher := &retryingMatcher{inner: o.matcher, policy: o.retry, log: log}
	matches, err := RankPostings(ctx, matcher, profile, postings)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome{reason: fmt.Sprintf("%s: %v", constants.ReasonProcessingTimedOut, ctxErr)}
		}
		return outcome{reason: fmt.Sprintf("%s: %v", constants.ReasonNoPostingScored, err)}
	}

	result := &types.JobResult{
		Matches:  matches,
		Research: o.research(ctx, matches, log),
	}
	result.Normalize()
	return outcome{result: result}
}

// research 尽力而为，失败只记录日志
func (o *Orchestrator) research(ctx context.Context, matches []types.MatchResult, log zerolog.Logger) map[string][]types.ResearchNote {
	notes := make(map[string][]types.ResearchNote)
	if o.researcher == nil {
		return notes
	}
	for _, company := range companiesToResearch(matches, o.researchThreshold, maxResearchCompanies) {
		if ctx.Err() != nil {
			break
		}
		found, err := o.researcher.Research(ctx, company)
		if err != nil {
			log.Warn().Err(err).Str("company", company).Msg("公司调研失败，忽略")
			continue
		}
		if len(found) > 0 {
			notes[company] = found
		}
	}
	return notes
}

func (o *Orchestrator) exhaustedReason(ctx context.Context, base string, attempts int, err error) string {
	if ctx.Err() != nil {
		return fmt.Sprintf("%s: %v", constants.ReasonProcessingTimedOut, ctx.Err())
	}
	if IsTransient(err) {
		return fmt.Sprintf("%s after %d attempts: %v", base, attempts, err)
	}
	return fmt.Sprintf("%s: %v", base, err)
}

// ReapStale 将卡在 processing 超过 staleAfter 的作业置为 failed，
// 并重新派发长时间未被认领的 pending 作业。返回回收的作业数。
func (o *Orchestrator) ReapStale(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-o.staleAfter)

	stale, err := o.jobs.ListStale(ctx, cutoff, reapBatchSize)
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, job := range stale {
		err := o.jobs.Fail(ctx, job.JobID, constants.ReasonProcessingTimedOut)
		switch {
		case err == nil:
			reaped++
			o.logger.Warn().Str("job_id", job.JobID).Time("updated_at", job.UpdatedAt).Msg("回收超时作业")
		case errors.Is(err, storage.ErrInvalidTransition), errors.Is(err, ErrJobNotFound):
			// 刚好完成
		default:
			return reaped, err
		}
	}

	if o.requeue == nil {
		return reaped, nil
	}
	pending, err := o.jobs.ListPendingBefore(ctx, cutoff, reapBatchSize)
	if err != nil {
		return reaped, err
	}
	for _, job := range pending {
		if err := o.requeue(ctx, job.JobID, job.OwnerID); err != nil {
			o.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("重新派发 pending 作业失败")
			continue
		}
		o.logger.Info().Str("job_id", job.JobID).Msg("重新派发长时间未认领的作业")
	}
	return reaped, nil
}

// StartReaper 周期性执行 ReapStale，直到 ctx 结束。返回的 channel 在后台任务退出后关闭。
func (o *Orchestrator) StartReaper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := o.ReapStale(ctx); err != nil {
					o.logger.Error().Err(err).Msg("回收超时作业失败")
				} else if n > 0 {
					o.logger.Info().Int("count", n).Msg("已回收超时作业")
				}
			}
		}
	}()
	return done
}
