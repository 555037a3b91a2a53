package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"resume-matcher/internal/constants"
	"resume-matcher/internal/outbox"
	"resume-matcher/internal/storage/models"

	"github.com/rs/zerolog"
)

// Dispatcher 将队列中的作业事件交给 JobProcessor 执行。
// Handle 的返回值表示是否确认（ack）该消息。
type Dispatcher struct {
	processor JobProcessor
	logger    zerolog.Logger
}

// NewDispatcher 创建派发器
func NewDispatcher(processor JobProcessor, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{processor: processor, logger: logger}
}

// Handle 处理一条 analysis.job.created 消息。
// 无法解析的消息直接确认丢弃；只有作业存储暂时不可用时才返回 false 要求重新投递。
func (d *Dispatcher) Handle(ctx context.Context, body []byte) (ack bool) {
	var event models.AnalysisJobEvent
	if err := json.Unmarshal(body, &event); err != nil || event.JobID == "" {
		d.logger.Error().Err(err).Str("body", string(body)).Msg("无法解析作业事件，丢弃")
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			// 作业停留在 processing，由 reaper 置为 failed
			d.logger.Error().Interface("panic", r).Str("job_id", event.JobID).Msg("处理作业时发生 panic")
			ack = true
		}
	}()

	if err := d.processor.Process(ctx, event.JobID); err != nil {
		if IsTransient(err) {
			d.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("作业存储暂不可用，消息将重新投递")
			return false
		}
		d.logger.Error().Err(err).Str("job_id", event.JobID).Msg("处理作业失败")
	}
	return true
}

// NewRequeueFunc 通过发布器重新投递作业事件，供 reaper 使用
func NewRequeueFunc(publisher outbox.Publisher, exchange, routingKey string) RequeueFunc {
	if routingKey == "" {
		routingKey = constants.EventAnalysisJobCreated
	}
	return func(ctx context.Context, jobID, ownerID string) error {
		payload, err := json.Marshal(models.AnalysisJobEvent{JobID: jobID, OwnerID: ownerID})
		if err != nil {
			return fmt.Errorf("序列化作业事件失败: %w", err)
		}
		return publisher.PublishMessage(ctx, exchange, routingKey, payload, true)
	}
}
