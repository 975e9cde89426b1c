package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"planted-staging/internal/config"
	"planted-staging/internal/logger"
	"planted-staging/internal/model"

	"github.com/gin-gonic/gin"
)

const adminContextKey = "admin"

func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func LoggingMiddleware() gin.HandlerFunc {
	log := logger.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request handled")
	}
}

func RecoveryMiddleware() gin.HandlerFunc {
	log := logger.Component("http")
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{Status: statusError, Message: "internal server error"})
	})
}

// AdminAuthMiddleware accepts the static bearer tokens configured for admins
// and stores the matching identity on the context.
func AdminAuthMiddleware(admins []config.AdminCredential) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Status: statusError, Message: "missing bearer token"})
			return
		}

		for _, admin := range admins {
			if admin.Token != "" && subtle.ConstantTimeCompare([]byte(admin.Token), []byte(token)) == 1 {
				c.Set(adminContextKey, model.AdminIdentity{
					ID:        admin.ID,
					FirstName: admin.FirstName,
					LastName:  admin.LastName,
					Email:     admin.Email,
				})
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Status: statusError, Message: "invalid bearer token"})
	}
}

func currentAdmin(c *gin.Context) model.AdminIdentity {
	if v, ok := c.Get(adminContextKey); ok {
		if admin, ok := v.(model.AdminIdentity); ok {
			return admin
		}
	}
	return model.AdminIdentity{}
}
