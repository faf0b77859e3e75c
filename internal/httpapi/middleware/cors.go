package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"wa-gateway/internal/config"
)

// CORS wraps gin-contrib/cors with the configured allow-list, using the
// maintained middleware rather than hand-rolled origin matching.
func CORS(cfg *config.Config) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Location-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.CORS.AllowedOrigins) == 1 && cfg.CORS.AllowedOrigins[0] == "*" {
		c.AllowAllOrigins = true
		c.AllowCredentials = false // gin-contrib/cors rejects AllowCredentials with a wildcard origin
	} else {
		c.AllowOrigins = cfg.CORS.AllowedOrigins
	}

	return cors.New(c)
}
