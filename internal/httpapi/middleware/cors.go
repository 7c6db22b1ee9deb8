package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS answers every origin permissively: runner and admin-UI callers are
// not known in advance, so there's no fixed allowlist to check against.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Runner-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}
