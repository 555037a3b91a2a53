package processor

import (
	"time"

	"github.com/rs/zerolog"
)

// OrchestratorOption 编排器选项
type OrchestratorOption func(*Orchestrator)

// IntakeOption 提交入口选项
type IntakeOption func(*Intake)

// ----- 编排器选项 -----

// WithLogger 设置日志器
func WithLogger(logger zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithRetryPolicy 设置下游调用的重试策略
func WithRetryPolicy(policy RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retry = policy
	}
}

// WithResearcher 设置公司调研组件，nil 表示不调研
func WithResearcher(researcher Researcher) OrchestratorOption {
	return func(o *Orchestrator) {
		o.researcher = researcher
	}
}

// WithResearchThreshold 分数严格大于该值的岗位才会调研
func WithResearchThreshold(threshold int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.researchThreshold = threshold
	}
}

// WithStaleAfter processing 超过该时长未更新的作业会被回收
func WithStaleAfter(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.staleAfter = d
		}
	}
}

// WithJobTimeout 单个作业的处理时限，0 表示不限
func WithJobTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.jobTimeout = d
	}
}

// WithRequeue 设置重新派发长时间未认领 pending 作业的方法
func WithRequeue(requeue RequeueFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		o.requeue = requeue
	}
}

// ----- 提交入口选项 -----

// WithUploadLocker 设置跨实例的上传锁
func WithUploadLocker(locker UploadLocker, ttl time.Duration) IntakeOption {
	return func(in *Intake) {
		in.locker = locker
		if ttl > 0 {
			in.lockTTL = ttl
		}
	}
}

// WithMaxSize 文件大小上限
func WithMaxSize(maxBytes int64) IntakeOption {
	return func(in *Intake) {
		if maxBytes > 0 {
			in.maxSize = maxBytes
		}
	}
}

// WithAllowedContentTypes 允许的内容类型
func WithAllowedContentTypes(contentTypes []string) IntakeOption {
	return func(in *Intake) {
		if len(contentTypes) == 0 {
			return
		}
		in.allowed = make(map[string]struct{}, len(contentTypes))
		for _, ct := range contentTypes {
			in.allowed[normalizeContentType(ct)] = struct{}{}
		}
	}
}

// WithEventRoute 作业创建事件投递的交换机和路由键
func WithEventRoute(exchange, routingKey string) IntakeOption {
	return func(in *Intake) {
		in.exchange = exchange
		in.routingKey = routingKey
	}
}

// WithIntakeLogger 设置日志器
func WithIntakeLogger(logger zerolog.Logger) IntakeOption {
	return func(in *Intake) {
		in.logger = logger
	}
}
