package middlewares

import (
	"errors"
	"net/http"

	"bitbucket.org/storeline/retail_backend/models"
	"bitbucket.org/storeline/retail_backend/utils"
	"github.com/gin-gonic/gin"
)

// RequirePermission gates a route on one named permission. The Admin role
// passes unconditionally. Status taxonomy:
//
//	400 when the session carries no role or no owner id
//	404 when the role does not exist for the owner
//	403 when the role exists but lacks the permission
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		role, ok := utils.GetUserRoleFromContext(ctx)
		if !ok || role == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user has no role"})
			c.Abort()
			return
		}
		ownerId, ok := utils.GetOwnerIdFromContext(ctx)
		if !ok || ownerId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user has no owner id"})
			c.Abort()
			return
		}

		if role == models.AdminRoleName {
			c.Next()
			return
		}

		allowed, err := models.RoleHasPermission(ctx, ownerId, role, permission)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			c.Abort()
			return
		}
		c.Next()
	}
}
