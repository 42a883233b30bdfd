package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/juanse07/nexa-sub001/internal/api/middleware"
	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/pkg/response"
)

// MustGetIdentity reads the caller identity injected by JWTAuth.
// On failure it writes a 401 and returns false; callers return immediately.
func MustGetIdentity(c *gin.Context) (model.Identity, bool) {
	provider := c.GetString(middleware.CtxProvider)
	subject := c.GetString(middleware.CtxSubject)
	if provider == "" || subject == "" {
		response.Unauthorized(c, 10002, "not authenticated")
		return model.Identity{}, false
	}
	return model.Identity{
		Provider: provider,
		Subject:  subject,
		Name:     c.GetString(middleware.CtxName),
		Email:    c.GetString(middleware.CtxEmail),
	}, true
}

// MustGetManagerID reads the manager id carried by a manager token.
func MustGetManagerID(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.CtxManagerID)
	if !exists {
		response.Unauthorized(c, 10002, "not authenticated")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Forbidden(c, 10003, "manager access required")
		return "", false
	}
	return s, true
}
