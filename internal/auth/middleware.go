package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain/user"
	"storefront/internal/httpx"
)

const CtxUserIDKey = "user_id"
const CtxRoleKey = "role"

// UserLookup is the slice of the user store the middleware needs.
type UserLookup interface {
	ByID(ctx context.Context, id int64) (user.User, error)
}

func bearer(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tok, tok != ""
}

// Authenticate requires a valid access token for an active user. The role is
// read from the database so demotions take effect immediately.
func Authenticate(jwtMgr *JWTManager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			httpx.Fail(c, http.StatusUnauthorized, "Access token is required", nil)
			return
		}
		claims, err := jwtMgr.ParseAccess(token)
		if err != nil {
			httpx.Fail(c, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}
		u, err := users.ByID(c.Request.Context(), claims.UserID)
		if err != nil || !u.IsActive {
			httpx.Fail(c, http.StatusUnauthorized, "User not found or inactive", nil)
			return
		}
		c.Set(CtxUserIDKey, u.ID)
		c.Set(CtxRoleKey, u.Role)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(jwtMgr *JWTManager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearer(c); ok {
			if claims, err := jwtMgr.ParseAccess(token); err == nil {
				if u, err := users.ByID(c.Request.Context(), claims.UserID); err == nil && u.IsActive {
					c.Set(CtxUserIDKey, u.ID)
					c.Set(CtxRoleKey, u.Role)
				}
			}
		}
		c.Next()
	}
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRoleKey) != role {
			httpx.Fail(c, http.StatusForbidden, "Access denied. Insufficient permissions.", nil)
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, or 0 for anonymous requests.
func UserID(c *gin.Context) int64 {
	return c.GetInt64(CtxUserIDKey)
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(CtxRoleKey) == user.RoleAdmin
}
