package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/openlearn/lms-api/internal/middleware"
	"github.com/openlearn/lms-api/internal/models"
	"github.com/openlearn/lms-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) service.Permissions {
	return service.ResolvePermissions(claimsFromContext(c))
}
