package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	AllowOrigins []string // empty allows any origin
	MaxAge       time.Duration
}

// DefaultCORSConfig lets any dashboard origin poll the read-only endpoints.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		MaxAge: 12 * time.Hour,
	}
}

// CORS creates a CORS middleware for the diagnostics endpoints. Only GET is
// exposed and credentials are never allowed.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Accept", "Origin", "Cache-Control"},
		MaxAge:       cfg.MaxAge,
	}
	if len(cfg.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(c)
}
