// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"

	"feed-ai-go/internal/service"
	"feed-ai-go/pkg/log"
	"feed-ai-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 上下文中的键，由 AuthMiddleware 写入。
const (
	ContextUser   = "user"
	ContextClaims = "claims"
	ContextToken  = "token"
)

const (
	msgNotAuthenticated   = "Not authenticated"
	msgInvalidCredentials = "Could not validate credentials"
	msgTokenRevoked       = "Token has been revoked"
)

func abortUnauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": message})
}

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 token，验证签名、有效期与黑名单，
// 然后按 claims 中的 ID 加载当前用户并存入 Gin 的上下文中。
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, msgNotAuthenticated)
			return
		}
		raw := token.StripBearer(authHeader)
		if raw == "" {
			abortUnauthorized(c, msgNotAuthenticated)
			return
		}

		claims, err := jwtManager.VerifyToken(raw)
		if err != nil {
			abortUnauthorized(c, msgInvalidCredentials)
			return
		}

		revoked, err := userService.IsRevoked(c.Request.Context(), raw)
		if err != nil {
			log.Errorf("[AuthMiddleware] blacklist lookup failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": service.MsgInternal})
			return
		}
		if revoked {
			abortUnauthorized(c, msgTokenRevoked)
			return
		}

		id, err := uuid.Parse(claims.ID)
		if err != nil {
			abortUnauthorized(c, msgInvalidCredentials)
			return
		}
		// 用户可能在 token 签发后被删除
		user, err := userService.GetByID(c.Request.Context(), id)
		if err != nil {
			abortUnauthorized(c, msgInvalidCredentials)
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextClaims, claims)
		c.Set(ContextToken, raw)
		c.Next()
	}
}
