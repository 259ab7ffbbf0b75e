package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradeway/forecast-service/internal/config"
)

// Roles allowed on admin endpoints when authenticating with a JWT.
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
)

// AdminMiddleware provides admin authentication middleware
type AdminMiddleware struct {
	apiKey     string
	apiKeyHash []byte
	auth       *AuthMiddleware
}

// NewAdminMiddleware accepts either the plain admin key or its bcrypt hash;
// the hash wins when both are configured. A non-nil auth also admits JWTs
// carrying the admin or analyst role.
func NewAdminMiddleware(cfg config.AuthConfig, auth *AuthMiddleware) *AdminMiddleware {
	am := &AdminMiddleware{auth: auth}
	if cfg.AdminAPIKeyHash != "" {
		am.apiKeyHash = []byte(cfg.AdminAPIKeyHash)
	} else {
		am.apiKey = cfg.AdminAPIKey
		if am.apiKey == "" {
			am.apiKey = config.DefaultAdminAPIKey
		}
	}
	return am
}

// RequireAdminAuth middleware validates admin API keys
func (am *AdminMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for API key or token in Authorization header (Bearer token)
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if am.ValidateAdminKey(token) {
				c.Set("auth_method", "api_key")
				c.Next()
				return
			}
			if am.auth != nil {
				if claims, err := am.auth.ValidateToken(token); err == nil && hasRole(claims, RoleAdmin, RoleAnalyst) {
					setClaims(c, claims)
					c.Set("auth_method", "jwt")
					c.Next()
					return
				}
			}
		}

		if am.ValidateAdminKey(c.GetHeader("X-API-Key")) {
			c.Set("auth_method", "api_key")
			c.Next()
			return
		}

		// Check for API key in query parameter (less secure, for development only)
		if am.ValidateAdminKey(c.Query("api_key")) {
			c.Set("auth_method", "api_key")
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "Valid admin API key required for this endpoint",
		})
		c.Abort()
	}
}

// ValidateAdminKey validates an admin API key
func (am *AdminMiddleware) ValidateAdminKey(key string) bool {
	if key == "" {
		return false
	}
	if am.apiKeyHash != nil {
		return bcrypt.CompareHashAndPassword(am.apiKeyHash, []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(am.apiKey)) == 1
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", false
	}
	return token, true
}
