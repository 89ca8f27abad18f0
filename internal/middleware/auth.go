package middleware

import (
	"net/http"
	"strings"

	"exam_platform_backend/internal/config"
	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// UserGuard re-reads the account behind a token so deactivation and role
// changes take effect before the token expires.
type UserGuard interface {
	ActiveUser(id uint) (*model.User, error)
}

func AuthMiddleware(cfg *config.Config, guard UserGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// Browsers cannot set headers on websocket upgrades, so the token may
		// arrive in the query string instead.
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		user, err := guard.ActiveUser(claims.UserID)
		if err != nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if !user.IsActive {
			util.Error(c, http.StatusForbidden, "Account is disabled")
			c.Abort()
			return
		}
		// The stored role wins over the token's copy.
		claims.Role = user.Role

		c.Set("user", claims)
		c.Next()
	}
}

func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		// Admins pass every role gate.
		hasRole := user.Role == model.Admin
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
