package middleware

import (
	"fmt"
	"strings"

	"livequiz/pkg/errors"
	"livequiz/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// HostClaims is the token the auth service issues to quiz hosts.
type HostClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func ParseHostToken(tokenString, secret string) (*HostClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &HostClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*HostClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// HostAuth guards host-only routes with a bearer token. An empty secret turns
// the check off, which is only allowed outside production.
func HostAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, errors.New(errors.ErrCodeUnauthorized, "authorization header is required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWith(c, errors.New(errors.ErrCodeUnauthorized, "invalid authorization header format"))
			return
		}

		claims, err := ParseHostToken(parts[1], secret)
		if err != nil {
			logger.Debug("Rejected host token", "path", c.Request.URL.Path, "error", err)
			abortWith(c, errors.New(errors.ErrCodeUnauthorized, "invalid or expired token"))
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

func abortWith(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errors.HTTPStatus(err), gin.H{
		"error": errors.MessageOf(err),
		"code":  errors.CodeOf(err),
	})
}
