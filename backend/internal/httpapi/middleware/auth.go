package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess = "access"
	// 签发方写入 iss，编辑服务只认自己签的或没有 iss 的令牌
	TokenIssuer = "autoformat-service"
)

var (
	ErrTokenMissing   = errors.New("TOKEN_MISSING")
	ErrTokenInvalid   = errors.New("TOKEN_INVALID")
	ErrNotAccessToken = errors.New("NOT_ACCESS_TOKEN")
)

// Claims uid/username 写进 gin.Context，websocket 欢迎消息和日志会用到
type Claims struct {
	UserID   uint64 `json:"uid"`
	Username string `json:"username"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// SignAccessToken 给运维脚本和测试签一个短期访问令牌
func SignAccessToken(secret string, userID uint64, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		Type:     tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken 只接受 HS256；过期、签名不对、iss 不对都归为 ErrTokenInvalid
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Issuer != "" && claims.Issuer != TokenIssuer {
		return nil, errors.Join(ErrTokenInvalid, jwt.ErrTokenInvalidIssuer)
	}
	if claims.Type != "" && claims.Type != tokenTypeAccess {
		return nil, ErrNotAccessToken
	}
	return claims, nil
}

// AuthMiddleware secret 为空时整组路由不鉴权（本地开发）
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		claims, err := authenticate(c, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "UNAUTHENTICATED",
				"error": reason(err),
			})
			return
		}
		c.Set("userId", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

func authenticate(c *gin.Context, secret string) (*Claims, error) {
	raw := extractBearer(c.GetHeader("Authorization"))
	if raw == "" {
		// 浏览器的 WebSocket 没法带自定义 Header，走 ?token=
		raw = strings.TrimSpace(c.Query("token"))
	}
	if raw == "" {
		return nil, ErrTokenMissing
	}
	return ParseToken(secret, raw)
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "token missing"
	case errors.Is(err, ErrNotAccessToken):
		return "access token required"
	default:
		return "invalid token"
	}
}

func extractBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
