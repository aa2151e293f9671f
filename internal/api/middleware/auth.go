package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/fedtimeline/pkg/response"
)

// ContextSubject 通过认证的调用方（token 的 sub）
const ContextSubject = "auth_subject"

var errMissingToken = errors.New("missing bearer token")

// JWTAuth 校验 HS256 bearer token；secret 为空时不启用认证
func JWTAuth(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	key := []byte(secret)
	return func(c *gin.Context) {
		subject, err := parseBearer(c.GetHeader("Authorization"), key)
		if err != nil {
			response.Unauthorized(c, err.Error())
			return
		}
		c.Set(ContextSubject, subject)
		c.Next()
	}
}

func parseBearer(header string, key []byte) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", errMissingToken
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return token.Claims.GetSubject()
}

// IssueToken 签发 HS256 token，供命令行和测试使用
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}
