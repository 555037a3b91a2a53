package processor

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrQueueFull 进程内队列已满
var ErrQueueFull = errors.New("in-process job queue is full")

// ErrPoolClosed 工作池已停止
var ErrPoolClosed = errors.New("worker pool is stopped")

// WorkerPool 未配置 RabbitMQ 时使用的进程内队列，实现 outbox.Publisher。
// PublishMessage 从不阻塞，队列满时返回错误，outbox 会在下一轮重试。
type WorkerPool struct {
	queue   chan []byte
	workers int
	logger  zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewWorkerPool 创建工作池
func NewWorkerPool(workers, queueSize int, logger zerolog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &WorkerPool{
		queue:   make(chan []byte, queueSize),
		workers: workers,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// PublishMessage 将消息放入队列。exchange 和 routingKey 仅用于日志。
func (p *WorkerPool) PublishMessage(ctx context.Context, exchange, routingKey string, body []byte, persistent bool) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.queue <- body:
		p.logger.Debug().Str("exchange", exchange).Str("routing_key", routingKey).Msg("消息已进入进程内队列")
		return nil
	default:
		return ErrQueueFull
	}
}

// Start 启动 workers 个消费协程。handler 返回 false 的消息会被丢弃，
// 对应作业仍为 pending，由 reaper 重新派发。
// Stop 不会取消 ctx，正在执行的作业会正常结束。
func (p *WorkerPool) Start(ctx context.Context, handler func(context.Context, []byte) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.stop:
					return
				case body, ok := <-p.queue:
					if !ok {
						return
					}
					if !handler(ctx, body) {
						p.logger.Warn().Int("worker", id).Msg("消息处理未确认，等待 reaper 重新派发")
					}
				}
			}
		}(i)
	}
	p.logger.Info().Int("workers", p.workers).Int("capacity", cap(p.queue)).Msg("进程内工作池已启动")
}

// Stop 停止接收新消息并等待正在执行的作业结束。可重复调用。
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
}

// Pending 队列中等待处理的消息数
func (p *WorkerPool) Pending() int {
	return len(p.queue)
}
