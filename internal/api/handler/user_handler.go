package handler

import (
	"context"
	"net/http"

	"resume-matcher/internal/auth"
	"resume-matcher/internal/storage/models"
	"resume-matcher/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/rs/zerolog"
)

// UserRegistry 用户登记，由 storage.UserStore 实现
type UserRegistry interface {
	FindOrCreate(ctx context.Context, externalID, email string) (*models.User, bool, error)
}

// UserHandler 用户同步
type UserHandler struct {
	users  UserRegistry
	logger zerolog.Logger
}

// NewUserHandler 创建用户处理器
func NewUserHandler(users UserRegistry, logger zerolog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleSyncUser 首次登录时登记用户
// POST /api/sync-user
func (h *UserHandler) HandleSyncUser(ctx context.Context, c *app.RequestContext) {
	ownerID := auth.OwnerID(c)

	user, created, err := h.users.FindOrCreate(ctx, ownerID, auth.Email(c))
	if err != nil {
		h.logger.Error().Err(err).Str("owner_id", ownerID).Msg("同步用户失败")
		c.JSON(http.StatusInternalServerError, utils.H{"error": "internal error"})
		return
	}

	status := "EXISTS"
	if created {
		status = "CREATED"
		h.logger.Info().Str("owner_id", ownerID).
			Str("email", tracing.SafeAttributeValue("email", user.Email, tracing.DefaultMaxLength)).
			Msg("新用户已登记")
	}
	c.JSON(http.StatusOK, utils.H{"status": status, "user_id": user.UserID})
}
