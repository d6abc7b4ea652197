package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/response"
)

// FormRoles may open and edit schedule forms.
var FormRoles = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff}

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...models.UserRole) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireFormRoles restricts a route group to schedule editors.
func RequireFormRoles() gin.HandlerFunc {
	return RBAC(FormRoles...)
}
