// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// 面向客户端的固定错误信息。
const (
	MsgInvalidCredentials = "User or Password Incorrect"
	MsgAdminRequired      = "Admin permission required!"
	MsgAdminImmutable     = "Admin user is immutable"
	MsgInvalidUserID      = "ID must be a valid UUID string."
	MsgUserNotFound       = "User not found."
	MsgForbiddenUser      = "You can only change your own user"
	MsgTagNotFound        = "Tag not found"
	MsgDuplicateTag       = "Tag/Document name already analyzed. Please choose another or rename it"
	MsgUnsupportedFile    = "Only '.csv' and '.xlsx' files available"
	MsgMissingTextColumn  = "File must contain a 'Text' column"
	MsgNoUsableText       = "No text left to analyze after cleaning"
	MsgDateOperator       = "Please provide operator and date to filter - operators: [gte, gt, e, lt, lte]"
	MsgNoArticles         = "no articles found"
	MsgTagTooLong         = "Tag/Document name must be at most 255 characters"
	MsgPasswordTooLong    = "Password must be at most 72 bytes"
	MsgInternal           = "Internal server error"
)

// Error 是业务层错误，Status 为应返回给客户端的 HTTP 状态码。
// Message 面向客户端，Err 只用于日志。
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func BadRequest(message string) *Error   { return newError(http.StatusBadRequest, message, nil) }
func Unauthorized(message string) *Error { return newError(http.StatusUnauthorized, message, nil) }
func Forbidden(message string) *Error    { return newError(http.StatusForbidden, message, nil) }
func NotFound(message string) *Error     { return newError(http.StatusNotFound, message, nil) }

// Internal 包装一个未分类的错误，客户端只会看到通用信息。
func Internal(err error) *Error {
	return newError(http.StatusInternalServerError, MsgInternal, err)
}

// translateStorageError 把存储层错误转换为业务错误：
// 记录不存在 → 404 notFound，唯一约束冲突 → 400，其余 → 500。
func translateStorageError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(http.StatusNotFound, notFound, err)
	}
	if field, ok := uniqueField(err); ok {
		if field == "key" || field == "related_key" {
			return newError(http.StatusBadRequest, MsgDuplicateTag, err)
		}
		return newError(http.StatusBadRequest, alreadyRegistered(field), err)
	}
	return Internal(err)
}

func alreadyRegistered(field string) string {
	if field == "" {
		return "Value already registered. Choose another one."
	}
	return strings.ToUpper(field[:1]) + strings.ToLower(field[1:]) + " already registered. Choose another one."
}

// uniqueField 从驱动错误信息中提取违反唯一约束的列名。
// MySQL: Duplicate entry 'x' for key 'users.uniq_users_email'
// SQLite: UNIQUE constraint failed: users.email
func uniqueField(err error) (string, bool) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number != 1062 {
			return "", false
		}
		return fieldFromIndex(myErr.Message), true
	}

	msg := err.Error()
	const sqliteMarker = "UNIQUE constraint failed: "
	if i := strings.Index(msg, sqliteMarker); i >= 0 {
		rest := msg[i+len(sqliteMarker):]
		if j := strings.IndexAny(rest, ", ("); j >= 0 {
			rest = rest[:j]
		}
		if dot := strings.LastIndex(rest, "."); dot >= 0 {
			rest = rest[dot+1:]
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// fieldFromIndex 依赖唯一索引的命名规则 uniq_<table>_<column>。
func fieldFromIndex(msg string) string {
	const marker = "for key '"
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	index := strings.TrimSuffix(msg[i+len(marker):], "'")
	if dot := strings.LastIndex(index, "."); dot >= 0 {
		index = index[dot+1:]
	}
	index = strings.TrimPrefix(index, "uniq_")
	if us := strings.Index(index, "_"); us >= 0 {
		return index[us+1:]
	}
	return index
}
