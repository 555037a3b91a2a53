package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisJob 简历分析作业表，作业状态的唯一权威来源
type AnalysisJob struct {
	JobID   string `gorm:"type:char(36);primaryKey"`
	OwnerID string `gorm:"type:varchar(191);not null;index:idx_aj_owner_created,priority:1"`
	State   string `gorm:"type:varchar(20);not null;index:idx_aj_state_updated,priority:1"`
	// ActiveOwner 在作业未到终态时等于 OwnerID，终态时置为 NULL。
	// 唯一索引保证每个用户同一时间最多一个活跃作业（NULL 不参与唯一约束）。
	ActiveOwner   *string        `gorm:"type:varchar(191);uniqueIndex:uq_aj_active_owner"`
	DocumentRef   string         `gorm:"type:varchar(1024);not null"`
	DocumentMD5   string         `gorm:"type:char(32)"`
	ContentType   string         `gorm:"type:varchar(100)"`
	FailureReason *string        `gorm:"type:text"`
	Result        datatypes.JSON `gorm:"type:json"`
	AttemptCount  int            `gorm:"not null;default:0"`
	CreatedAt     time.Time      `gorm:"precision:6;index:idx_aj_owner_created,priority:2"`
	UpdatedAt     time.Time      `gorm:"precision:6;index:idx_aj_state_updated,priority:2"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// User 通过 sync-user 登记的用户
type User struct {
	UserID     string    `gorm:"type:char(36);primaryKey"`
	ExternalID string    `gorm:"type:varchar(191);not null;uniqueIndex:uq_users_external_id"`
	Email      string    `gorm:"type:varchar(255)"`
	CreatedAt  time.Time `gorm:"precision:6"`
}

func (User) TableName() string {
	return "users"
}

// StringPtr 返回字符串指针，空字符串返回 nil
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
