// Package middleware holds the gin middleware chain for the HTTP edge:
// JWT bearer auth, CORS, and structured request logging.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"wa-gateway/internal/config"
	"wa-gateway/internal/httpapi/response"
)

type ctxKey string

const UserIDKey ctxKey = "user_id"

// Claims is the JWT shape validated on every request: user id, email,
// and the registered claims (issuer/audience/expiry).
type Claims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Auth validates a bearer JWT - signing method, issuer, audience, user id -
// and stores the user id in gin's context for handlers to read.
func Auth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, "Authorization header required", nil)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			response.Error(c, http.StatusUnauthorized, "Invalid authorization header format", nil)
			c.Abort()
			return
		}

		claims, err := parseClaims(parts[1], cfg)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, err.Error(), nil)
			c.Abort()
			return
		}

		c.Set(string(UserIDKey), claims.UserID)
		c.Next()
	}
}

func parseClaims(tokenString string, cfg *config.Config) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token has expired")
		}
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Issuer != cfg.JWT.Issuer {
		return nil, fmt.Errorf("invalid token issuer")
	}
	audienceOK := false
	for _, aud := range claims.Audience {
		if aud == cfg.JWT.Audience {
			audienceOK = true
			break
		}
	}
	if !audienceOK {
		return nil, fmt.Errorf("invalid token audience")
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("invalid user id in token")
	}
	return claims, nil
}

// UserID reads the authenticated caller's id, set by Auth.
func UserID(c *gin.Context) int {
	return c.GetInt(string(UserIDKey))
}
