package middleware

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"time"

	"feed-ai-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

var (
	jsonSecretPattern = regexp.MustCompile(`("(?:password|access_token)"\s*:\s*)"(?:[^"\\]|\\.)*"`)
	formSecretPattern = regexp.MustCompile(`((?:^|&)(?:password|access_token)=)[^&]*`)
)

// redact 把请求或响应体中的密码与 token 替换为 ***。
func redact(body string) string {
	body = jsonSecretPattern.ReplaceAllString(body, `$1"***"`)
	return formSecretPattern.ReplaceAllString(body, `${1}***`)
}

// RequestLogger 是一个 Gin 中间件，用于记录请求和响应日志。
// multipart 上传不记录请求体。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestBody := ""
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			requestBody = "[multipart body omitted]"
		} else if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			requestBody = redact(string(raw))
		}

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", requestBody,
			"responseBody", redact(blw.body.String()),
		)
	}
}
