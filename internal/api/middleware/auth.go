package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/pkg/jwt"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
)

const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// UserLookup 按 ID 加载用户，由 service.AuthService 实现
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// Auth JWT 认证中间件，只接受访问令牌，且用户必须存在并处于启用状态
func Auth(jwtSecret string, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "认证格式错误")
			c.Abort()
			return
		}

		claims, err := jwt.ParseTyped(tokenString, jwtSecret, jwt.TokenTypeAccess)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil || !user.IsActive() {
			response.AuthError(c, "用户不存在或已停用")
			c.Abort()
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(UserKey, user)
		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

// GetUser 从上下文获取当前用户
func GetUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get(UserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}
