// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"feed-ai-go/internal/middleware"
	"feed-ai-go/internal/model"
	"feed-ai-go/internal/service"
	"feed-ai-go/pkg/log"
	"feed-ai-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// respondOK 以统一的 {code, message, data} 结构返回成功响应。
func respondOK(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"code": status, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// respondError 把业务错误映射为对应的 HTTP 状态，未分类的错误只返回通用信息并记录原因。
func respondError(c *gin.Context, err error) {
	var se *service.Error
	if errors.As(err, &se) {
		switch {
		case se.Status >= http.StatusInternalServerError:
			log.Errorf("[%s %s] %v", c.Request.Method, c.FullPath(), err)
		case se.Err != nil:
			log.Warnf("[%s %s] %v", c.Request.Method, c.FullPath(), err)
		}
		c.JSON(se.Status, gin.H{"code": se.Status, "message": se.Message})
		return
	}
	log.Errorf("[%s %s] unhandled error: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": service.MsgInternal})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": message})
}

// currentUser 取出 AuthMiddleware 注入的用户。
func currentUser(c *gin.Context) (*model.User, bool) {
	value, exists := c.Get(middleware.ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*model.User)
	return user, ok && user != nil
}

func currentClaims(c *gin.Context) (*token.UserClaims, bool) {
	value, exists := c.Get(middleware.ContextClaims)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*token.UserClaims)
	return claims, ok && claims != nil
}

// mustUser 在用户缺失时直接写入 500，调用方只需判断返回值。
func mustUser(c *gin.Context) (*model.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		respondError(c, errors.New("user missing from context"))
	}
	return user, ok
}
