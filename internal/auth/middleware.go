package auth

import (
	"context"
	"net/http"

	"resume-matcher/internal/constants"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/hertz-contrib/keyauth"
	"github.com/rs/zerolog"
)

const (
	// OwnerIDKey 请求上下文中保存 owner id 的键
	OwnerIDKey = constants.ContextKeyOwnerID
	// EmailKey 请求上下文中保存 email 的键
	EmailKey = "owner_email"
)

// Middleware 基于 keyauth 的 Bearer token 校验。失败返回 401。
func Middleware(verifier Verifier, logger zerolog.Logger) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, token string) (bool, error) {
			id, err := verifier.Verify(ctx, token)
			if err != nil {
				return false, err
			}
			c.Set(OwnerIDKey, id.OwnerID)
			c.Set(EmailKey, id.Email)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			logger.Debug().Err(err).Str("path", string(c.Path())).Msg("请求未通过身份校验")
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.H{"error": "authentication required"})
		}),
	)
}

// OwnerID 当前请求的 owner id，未认证时为空
func OwnerID(c *app.RequestContext) string {
	return c.GetString(OwnerIDKey)
}

// Email 当前请求身份的 email，可能为空
func Email(c *app.RequestContext) string {
	return c.GetString(EmailKey)
}
