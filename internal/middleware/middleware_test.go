package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"feed-ai-go/internal/model"
	"feed-ai-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json password", `{"email":"a@b.c","password":"s3cr\"et"}`, `{"email":"a@b.c","password":"***"}`},
		{"json token", `{"data":{"access_token": "abc.def"}}`, `{"data":{"access_token": "***"}}`},
		{"form", "username=a%40b.c&password=hunter2", "username=a%40b.c&password=***"},
		{"form first", "password=hunter2&x=1", "password=***&x=1"},
		{"untouched", `{"keyword":"password"}`, `{"keyword":"password"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redact(tt.in))
		})
	}
}

func TestRequestLoggerKeepsBodyReadable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/echo", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"password":"x"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"password":"x"}`, w.Body.String())
}

func TestAdminAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newRouter := func(user *model.User, claims *token.UserClaims) *gin.Engine {
		r := gin.New()
		r.GET("/admin", func(c *gin.Context) {
			if user != nil {
				c.Set(ContextUser, user)
			}
			if claims != nil {
				c.Set(ContextClaims, claims)
			}
			c.Next()
		}, AdminAuthMiddleware(), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		return r
	}

	tests := []struct {
		name   string
		user   *model.User
		claims *token.UserClaims
		want   int
	}{
		{"admin", &model.User{IsAdmin: true}, &token.UserClaims{IsAdmin: true}, http.StatusNoContent},
		{"regular user", &model.User{}, &token.UserClaims{}, http.StatusForbidden},
		{"demoted since login", &model.User{}, &token.UserClaims{IsAdmin: true}, http.StatusForbidden},
		{"promoted since login", &model.User{IsAdmin: true}, &token.UserClaims{}, http.StatusForbidden},
		{"no claims", &model.User{IsAdmin: true}, nil, http.StatusForbidden},
		{"no user", nil, nil, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(tt.user, tt.claims).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
