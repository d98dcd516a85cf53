package middleware

import (
	"net/http"

	"feed-ai-go/internal/model"
	"feed-ai-go/internal/service"
	"feed-ai-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 检查用户是否具有管理员权限。
// 此中间件必须在 AuthMiddleware 之后使用。token 中的 is_admin 与数据库中的当前状态都必须为 true，
// 因此被降级的管理员立即失去权限，新晋管理员需要重新登录。
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUser)
		if !exists {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": service.MsgInternal})
			return
		}
		user, ok := value.(*model.User)
		if !ok || user == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": service.MsgInternal})
			return
		}

		claims, _ := c.Get(ContextClaims)
		userClaims, _ := claims.(*token.UserClaims)
		if userClaims == nil || !userClaims.IsAdmin || !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": service.MsgAdminRequired})
			return
		}
		c.Next()
	}
}
