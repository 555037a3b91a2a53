package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resume-matcher/internal/storage/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserStore 用户登记
type UserStore struct {
	db *gorm.DB
}

// NewUserStore 创建用户存储
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindOrCreate 按外部身份查找用户，不存在则创建。created 表示本次是否新建。
func (s *UserStore) FindOrCreate(ctx context.Context, externalID, email string) (*models.User, bool, error) {
	if externalID == "" {
		return nil, false, fmt.Errorf("外部身份不能为空")
	}

	user, err := s.findByExternalID(ctx, externalID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("查询用户失败: %w", err)
	}

	user = &models.User{
		UserID:     uuid.NewString(),
		ExternalID: externalID,
		Email:      email,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		// 并发的 sync-user 请求可能已经创建了同一用户
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := s.findByExternalID(ctx, externalID)
			if findErr != nil {
				return nil, false, fmt.Errorf("查询并发创建的用户失败: %w", findErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("创建用户失败: %w", err)
	}
	return user, true, nil
}

func (s *UserStore) findByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
