package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/models"
	"bitbucket.org/storeline/retail_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware validates the bearer token and hydrates the request
// context with the caller's identity. Requests without a token pass through
// anonymously; route groups that need auth stack RequireAuth on top.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		validated, err := utils.JwtValidate(token)
		if err != nil || !validated.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		claim, ok := validated.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		// a token is only live while its redis session exists; logout kills it
		_, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetUserIdInContext(ctx, claim.ID)
		ctx = utils.SetUserRoleInContext(ctx, claim.Role)
		ctx = utils.SetOwnerIdInContext(ctx, claim.OwnerId)

		if user, err := fetchSessionUser(c, claim.ID); err == nil {
			ctx = utils.SetUserNameInContext(ctx, user.Name)
			ctx = utils.SetUserEmailInContext(ctx, user.Email)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuth rejects requests that did not present a valid session.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.Request.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// legacy clients send the raw token header
	return c.Request.Header.Get("token")
}

func fetchSessionUser(c *gin.Context, userId int) (*models.User, error) {
	db := config.GetDB()
	var user models.User
	if err := db.WithContext(c.Request.Context()).First(&user, userId).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
