package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"feed-ai-go/internal/service"
	"feed-ai-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责文件导入以及批次结果的查询与删除。
type SearchHandler struct {
	feedbackService service.FeedbackService
	maxUploadBytes  int64
}

// NewSearchHandler 创建一个新的 SearchHandler 实例，maxUploadBytes 为上传文件的大小上限。
func NewSearchHandler(feedbackService service.FeedbackService, maxUploadBytes int64) *SearchHandler {
	return &SearchHandler{feedbackService: feedbackService, maxUploadBytes: maxUploadBytes}
}

// Upload 处理 multipart 文件上传，字段名为 file。
func (h *SearchHandler) Upload(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	// multipart 头部和边界需要一些额外空间
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, h.tooLargeMessage())
			return
		}
		log.Warnf("Upload: missing file field, error: %v", err)
		badRequest(c, "file is required")
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		badRequest(c, h.tooLargeMessage())
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, fmt.Errorf("open uploaded file: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		respondError(c, fmt.Errorf("read uploaded file: %w", err))
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		badRequest(c, h.tooLargeMessage())
		return
	}

	result, err := h.feedbackService.IngestFile(c.Request.Context(), user.ID.String(), fileHeader.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "success", result)
}

func (h *SearchHandler) tooLargeMessage() string {
	return fmt.Sprintf("File exceeds the maximum size of %d bytes", h.maxUploadBytes)
}

// tagList 同时接受单个字符串和字符串数组。
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*t = nil
		} else {
			*t = tagList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("tag must be a string or a list of strings")
	}
	*t = many
	return nil
}

// FilterRequest 定义了过滤接口的请求体结构。
type FilterRequest struct {
	Sentiment    string  `json:"sentiment"`
	Tag          tagList `json:"tag"`
	Date         string  `json:"date"`
	DateOperator string  `json:"date_operator"`
	Page         int     `json:"page"`
	ItemsPerPage int     `json:"items_per_page"`
}

// bindFilter 优先读取 JSON 请求体，请求体为空时回退到查询参数。
func bindFilter(c *gin.Context) (FilterRequest, error) {
	var req FilterRequest
	if c.Request.ContentLength != 0 && c.Request.Body != nil && c.Request.Body != http.NoBody {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return req, err
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return req, fmt.Errorf("invalid JSON body: %w", err)
			}
			return req, nil
		}
	}

	req.Sentiment = c.Query("sentiment")
	req.Tag = c.QueryArray("tag")
	req.Date = c.Query("date")
	req.DateOperator = c.Query("date_operator")
	var err error
	if req.Page, err = queryInt(c, "page"); err != nil {
		return req, err
	}
	if req.ItemsPerPage, err = queryInt(c, "items_per_page"); err != nil {
		return req, err
	}
	return req, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// Filter 按情感、标签和日期过滤当前用户的结果行。
func (h *SearchHandler) Filter(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	req, err := bindFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	rows, err := h.feedbackService.Filter(c.Request.Context(), user.ID.String(), service.FilterQuery{
		Sentiment:    req.Sentiment,
		Tags:         req.Tag,
		Date:         req.Date,
		DateOperator: req.DateOperator,
		Page:         req.Page,
		ItemsPerPage: req.ItemsPerPage,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "success", rows)
}

// Group 返回当前用户每个标签下各情感的数量。
func (h *SearchHandler) Group(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	counts, err := h.feedbackService.Group(c.Request.Context(), user.ID.String())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "success", counts)
}

// DistinctTags 返回当前用户的所有标签。
func (h *SearchHandler) DistinctTags(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	tags, err := h.feedbackService.DistinctTags(c.Request.Context(), user.ID.String())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "success", tags)
}

// Delete 删除当前用户指定标签的批次。
func (h *SearchHandler) Delete(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	tag := strings.TrimPrefix(c.Param("tag"), "/")
	if tag == "" {
		badRequest(c, "tag is required")
		return
	}
	deleted, err := h.feedbackService.DeleteByTag(c.Request.Context(), user.ID.String(), tag)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Responses deleted successfully", gin.H{"tag": tag, "deleted": deleted})
}
