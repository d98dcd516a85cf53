package handler

import (
	"net/http"

	"feed-ai-go/internal/service"
	"feed-ai-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// NewsHandler 负责按关键词分析新闻情感。
type NewsHandler struct {
	newsService service.NewsService
}

// NewNewsHandler 创建一个新的 NewsHandler 实例。
func NewNewsHandler(newsService service.NewsService) *NewsHandler {
	return &NewsHandler{newsService: newsService}
}

// AnalyzeRequest 定义了新闻分析 API 的请求体结构。
type AnalyzeRequest struct {
	Keyword string `json:"keyword" binding:"required"`
}

// Analyze 检索关键词相关的新闻并保存情感分析结果。
func (h *NewsHandler) Analyze(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Analyze: Invalid request payload, error: %v", err)
		badRequest(c, "keyword is required")
		return
	}

	analysis, err := h.newsService.AnalyzeKeyword(c.Request.Context(), user.ID.String(), req.Keyword)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, analysis.Message, analysis)
}
