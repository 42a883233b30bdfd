package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/pkg/jwt"
	"github.com/juanse07/nexa-sub001/pkg/redis"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

// Context keys set by JWTAuth.
const (
	CtxProvider  = "provider"
	CtxSubject   = "subject"
	CtxName      = "user_name"
	CtxEmail     = "user_email"
	CtxRole      = "role"
	CtxManagerID = "manager_id"
	CtxTokenJTI  = "token_jti"
	CtxTokenExp  = "token_exp"
)

// JWTAuth verifies the Bearer access token and injects the caller identity.
// Revoked token ids are rejected when Redis is configured; rdb may be nil.
func JWTAuth(jwtMgr *jwt.Manager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "malformed authorization header")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "invalid or expired token")
			c.Abort()
			return
		}

		if claims.TokenType != "access" {
			response.Unauthorized(c, 10002, "invalid token type")
			c.Abort()
			return
		}

		// a Redis outage degrades to signature-only checks
		if rdb != nil && claims.ID != "" {
			if revoked, err := rdb.IsBlacklisted(c.Request.Context(), claims.ID); err == nil && revoked {
				response.Unauthorized(c, 10002, "token revoked")
				c.Abort()
				return
			}
		}

		c.Set(CtxProvider, claims.Provider)
		c.Set(CtxSubject, claims.Subject)
		c.Set(CtxName, claims.Name)
		c.Set(CtxEmail, claims.Email)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxManagerID, claims.ManagerID)
		c.Set(CtxTokenJTI, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(CtxTokenExp, claims.ExpiresAt.Time)
		} else {
			c.Set(CtxTokenExp, time.Time{})
		}

		c.Next()
	}
}

// RequireManager admits callers whose token carries the manager role and id.
func RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		if role == "" {
			response.Unauthorized(c, 10002, "not authenticated")
			c.Abort()
			return
		}
		if role != jwt.RoleManager || c.GetString(CtxManagerID) == "" {
			response.Forbidden(c, 10003, "manager access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
