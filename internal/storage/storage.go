package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-matcher/internal/config"
	"resume-matcher/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 关系型数据库（必需）
	DB *RelationalDB

	// 对象存储（必需）
	MinIO *MinIO

	// 消息队列，未配置时使用进程内工作池
	RabbitMQ *RabbitMQ

	// 键值存储，未配置时跳过上传锁和目录缓存
	Redis *Redis
}

// NewStorage 创建存储管理器。数据库和对象存储失败时返回错误，其余组件失败只记录警告。
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	log := logger.Component("storage")
	s := &Storage{}
	var err error
	var initErrors []string

	s.DB, err = OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	s.MinIO, err = NewMinIO(&cfg.MinIO)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化MinIO失败: %w", err)
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err == nil {
			err = s.RabbitMQ.SetupAnalysisTopology()
		}
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
			if s.RabbitMQ != nil {
				_ = s.RabbitMQ.Close()
				s.RabbitMQ = nil
			}
		}
	} else {
		log.Info().Msg("RabbitMQ未配置, 使用进程内工作池")
	}

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		log.Info().Msg("Redis未配置, 跳过初始化")
	}

	if len(initErrors) > 0 {
		log.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分可选存储组件初始化失败")
	}
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	log := logger.Component("storage")
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Error().Err(err).Msg("关闭数据库连接失败")
		}
	}
}
