package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
)

const PermissionsKey = "permissions"

// PermissionResolver 由 service.RBACService 实现
type PermissionResolver interface {
	ResolvePermissions(ctx context.Context, userID int64) (service.PermissionSet, error)
}

// RequirePermission 权限校验，必须挂在 Auth 之后
func RequirePermission(resolver PermissionResolver, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		perms, err := Permissions(c, resolver)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Str("permission", name).Msg("failed to resolve permissions")
			response.ServerError(c, "")
			c.Abort()
			return
		}

		if !service.HasPermission(perms, name) {
			response.PermissionError(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}

// Permissions 当前请求用户的权限集合，同一请求内只查询一次
func Permissions(c *gin.Context, resolver PermissionResolver) (service.PermissionSet, error) {
	if v, ok := c.Get(PermissionsKey); ok {
		if perms, ok := v.(service.PermissionSet); ok {
			return perms, nil
		}
	}

	userID, _ := GetUserID(c)
	perms, err := resolver.ResolvePermissions(c.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	c.Set(PermissionsKey, perms)
	return perms, nil
}
