package handler

import (
	"errors"
	"net/http"

	"feed-ai-go/internal/service"
	"feed-ai-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责处理所有与用户管理相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest 定义了用户注册 API 的请求体结构。
type RegisterRequest struct {
	Name        string `json:"name" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	CPF         string `json:"cpf" binding:"required"`
	CNPJ        string `json:"cnpj"`
	CompanyName string `json:"company_name"`
	CompanyType string `json:"company_type"`
}

// Register 处理公开注册请求。
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		badRequest(c, "name, username, email, password and cpf are required")
		return
	}

	user, err := h.userService.Create(c.Request.Context(), service.CreateUserInput{
		Name:        req.Name,
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		CPF:         req.CPF,
		CNPJ:        req.CNPJ,
		CompanyName: req.CompanyName,
		CompanyType: req.CompanyType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	log.Infof("User '%s' registered successfully", user.Email)
	respondOK(c, http.StatusCreated, "User registered successfully", user)
}

// Update 处理部分更新请求，未提交的字段保持不变。
func (h *UserHandler) Update(c *gin.Context) {
	var req service.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Update: Invalid request payload, error: %v", err)
		badRequest(c, "invalid request payload")
		return
	}
	claims, ok := currentClaims(c)
	if !ok {
		respondError(c, errors.New("claims missing from context"))
		return
	}
	// 与 AdminAuthMiddleware 一致：token 与数据库都为管理员才算管理员
	actor := *claims
	user, ok := currentUser(c)
	actor.IsAdmin = claims.IsAdmin && ok && user.IsAdmin

	user, err := h.userService.Update(c.Request.Context(), &actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "User updated successfully", user)
}

// Delete 删除用户及其全部批次，仅限管理员。
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.userService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPublic 返回所有用户的公开信息。
func (h *UserHandler) ListPublic(c *gin.Context) {
	users, err := h.userService.ListPublic(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "success", users)
}

// List 返回所有用户的完整信息，仅限管理员。
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "success", users)
}

// Get 返回指定用户的完整信息，仅限管理员。
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "success", user)
}

// Me 返回当前 token 中解码出的用户信息。
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		respondError(c, errors.New("claims missing from context"))
		return
	}
	respondOK(c, http.StatusOK, "success", claims)
}
