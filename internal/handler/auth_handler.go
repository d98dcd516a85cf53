package handler

import (
	"net/http"

	"feed-ai-go/internal/middleware"
	"feed-ai-go/internal/service"
	"feed-ai-go/pkg/log"

	"github.com/gin-gonic/gin"
)

const tokenTypeBearer = "bearer"

// AuthHandler 负责处理登录、登出与认证探测请求。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// LoginRequest 定义了登录 API 的请求体结构。
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理 JSON 登录请求。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		badRequest(c, "email and password are required")
		return
	}

	accessToken, user, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Infof("User '%s' logged in successfully", user.Email)
	respondOK(c, http.StatusOK, "Login successful", gin.H{
		"access_token": accessToken,
		"token_type":   tokenTypeBearer,
	})
}

// LoginForm 处理 OAuth2 password 表单登录，username 字段填写邮箱。
// 响应是不带外层包装的标准 OAuth2 token JSON。
func (h *AuthHandler) LoginForm(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email == "" || password == "" {
		badRequest(c, "username and password are required")
		return
	}

	accessToken, _, err := h.userService.Login(c.Request.Context(), email, password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   tokenTypeBearer,
	})
}

// TestAuth 用于确认携带的 token 有效。
func (h *AuthHandler) TestAuth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"detail": "You are now authenticated!"})
}

// Logout 将当前 token 加入黑名单。
func (h *AuthHandler) Logout(c *gin.Context) {
	raw := c.GetString(middleware.ContextToken)
	if err := h.userService.Logout(c.Request.Context(), raw); err != nil {
		respondError(c, err)
		return
	}
	if user, ok := currentUser(c); ok {
		log.Infof("User '%s' logged out successfully", user.Email)
	}
	respondOK(c, http.StatusOK, "Logout successful", nil)
}
