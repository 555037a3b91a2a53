package processor

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"resume-matcher/internal/types"
)

// RetryPolicy 下游调用的有界重试策略
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy 3次尝试，指数退避，初始500ms，上限5s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.Multiplier = 2
	// 固定的退避序列，便于推算最坏耗时
	b.RandomizationFactor = 0
	// 只按次数限制
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts()-1)), ctx)
}

// retryCall 执行 fn，仅对 transient 错误重试。返回实际尝试次数。
func retryCall[T any](ctx context.Context, policy RetryPolicy, log zerolog.Logger, op string, fn func(context.Context) (T, error)) (T, int, error) {
	var result T
	attempts := 0

	operation := func() error {
		attempts++
		v, err := fn(ctx)
		if err != nil {
			if !IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("op", op).Int("attempt", attempts).Dur("backoff", wait).Msg("下游调用失败，准备重试")
	}

	err := backoff.RetryNotify(operation, policy.newBackOff(ctx), notify)
	return result, attempts, err
}

// retryingMatcher 为 Matcher 加上重试
type retryingMatcher struct {
	inner  Matcher
	policy RetryPolicy
	log    zerolog.Logger
}

func (m *retryingMatcher) Match(ctx context.Context, profile *types.CandidateProfile, posting types.Posting) (types.MatchDetails, error) {
	details, _, err := retryCall(ctx, m.policy, m.log, "match", func(ctx context.Context) (types.MatchDetails, error) {
		return m.inner.Match(ctx, profile, posting)
	})
	return details, err
}
