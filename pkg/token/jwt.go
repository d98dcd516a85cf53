// Package token 提供了用于生成和验证 JSON Web Tokens (JWT) 的功能。
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 表示 token 缺失、签名错误或已过期。
var ErrInvalidToken = errors.New("invalid token")

// JWTManager 负责管理 JWT 的生成和验证。
type JWTManager struct {
	secretKey      []byte        // secretKey 用于签名和验证 token 的密钥
	accessTokenDur time.Duration // accessTokenDur 定义了 access token 的有效期
}

// UserClaims 是签发时刻用户非敏感字段的快照。
// 它嵌入了 jwt.RegisteredClaims 以包含标准的 JWT 声明（如过期时间）。
type UserClaims struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	CPF         string `json:"cpf"`
	CNPJ        string `json:"cnpj"`
	CompanyName string `json:"company_name"`
	CompanyType string `json:"company_type"`
	IsAdmin     bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Subject 是签发 token 所需的用户信息，由调用方从持久化实体中填充。
type Subject struct {
	ID          string
	Username    string
	Name        string
	Email       string
	CPF         string
	CNPJ        string
	CompanyName string
	CompanyType string
	IsAdmin     bool
}

// NewJWTManager 创建一个新的 JWTManager 实例。
// secret: 用于签名的密钥字符串。
// accessTokenExpireHours: access token 的过期时间（小时），非正数时使用 24 小时。
func NewJWTManager(secret string, accessTokenExpireHours int) *JWTManager {
	if accessTokenExpireHours <= 0 {
		accessTokenExpireHours = 24
	}
	return &JWTManager{
		secretKey:      []byte(secret),
		accessTokenDur: time.Hour * time.Duration(accessTokenExpireHours),
	}
}

// TTL 返回 access token 的有效期。
func (m *JWTManager) TTL() time.Duration {
	return m.accessTokenDur
}

// GenerateToken 根据给定的用户信息生成一个新的 access token。
func (m *JWTManager) GenerateToken(s Subject) (string, error) {
	now := time.Now()
	claims := UserClaims{
		ID:          s.ID,
		Username:    s.Username,
		Name:        s.Name,
		Email:       s.Email,
		CPF:         s.CPF,
		CNPJ:        s.CNPJ,
		CompanyName: s.CompanyName,
		CompanyType: s.CompanyType,
		IsAdmin:     s.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	// 使用 HS256 签名方法创建新的 token 对象
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// VerifyToken 验证给定的 token 字符串，允许带有大小写不敏感的 "Bearer " 前缀。
// 任何失败都会返回包装了 ErrInvalidToken 的错误。
func (m *JWTManager) VerifyToken(tokenString string) (*UserClaims, error) {
	raw := StripBearer(tokenString)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(raw, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 检查签名方法是否为 HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// StripBearer 去掉 Authorization 头中的 Bearer 前缀（大小写不敏感）。
func StripBearer(header string) string {
	header = strings.TrimSpace(header)
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
