package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/webdevsha/permitakaun/pkg/logger"
	"github.com/webdevsha/permitakaun/pkg/response"
)

// Context keys for the authenticated profile
const (
	ContextKeyProfileID = "profile_id"
	ContextKeyEmail     = "email"
	ContextKeyRole      = "role"
)

// RoleAdmin is the role granted to allowlisted admin emails
const RoleAdmin = "admin"

// JWTConfig holds configuration for JWT middleware
type JWTConfig struct {
	// Secret key for validating HS256 tokens
	Secret string
	// Issuer, when set, must match the iss claim
	Issuer string
	// AdminEmails are promoted to the admin role regardless of the role claim
	AdminEmails []string
	// SkipPaths is a list of paths that should skip JWT validation
	SkipPaths []string
}

func (c *JWTConfig) isAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

// JWTMiddleware validates the bearer token and stores profile id, email and role in the
// gin context
func JWTMiddleware(config *JWTConfig) gin.HandlerFunc {
	var opts []jwt.ParserOption
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	parser := jwt.NewParser(append(opts, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))...)

	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if c.Request.URL.Path == path {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("MISSING_TOKEN", "Token pengesahan diperlukan"))
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Format pengepala Authorization tidak sah"))
			return
		}
		tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Token kosong"))
			return
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(config.Secret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("TOKEN_EXPIRED", "Sesi telah tamat, sila log masuk semula"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Token tidak sah"))
			return
		}
		if !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Token tidak sah"))
			return
		}

		// Supabase-style tokens carry the profile id in sub; older tokens use user_id
		profileID, _ := claims["user_id"].(string)
		if profileID == "" {
			profileID, _ = claims["sub"].(string)
		}
		if profileID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("INVALID_TOKEN", "Token tiada pengenalan pengguna"))
			return
		}

		email, _ := claims["email"].(string)
		role, _ := claims["role"].(string)
		if config.isAdminEmail(email) {
			role = RoleAdmin
		}

		c.Set(ContextKeyProfileID, profileID)
		c.Set(ContextKeyEmail, email)
		c.Set(ContextKeyRole, role)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.ProfileIDKey, profileID))

		c.Next()
	}
}

// RequireRole creates a middleware that checks if the caller has one of the roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr, ok := GetRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized(""))
			return
		}

		for _, r := range roles {
			if roleStr == r {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Forbidden(""))
	}
}

// GetProfileID extracts the profile ID from gin context
func GetProfileID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyProfileID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// GetEmail extracts email from gin context
func GetEmail(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyEmail)
	if !exists {
		return "", false
	}
	e, ok := v.(string)
	return e, ok
}

// GetRole extracts role from gin context
func GetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyRole)
	if !exists {
		return "", false
	}
	r, ok := v.(string)
	return r, ok
}
