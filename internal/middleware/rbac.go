package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
	"github.com/osei-dev/pastq-api/pkg/response"
)

// RequireModerator admits admins and moderators with active accounts.
func RequireModerator() gin.HandlerFunc {
	return requireCapability(func(claims *models.JWTClaims) bool {
		return claims.CanModerate()
	})
}

// RequireAdmin admits only active administrators.
func RequireAdmin() gin.HandlerFunc {
	return requireCapability(func(claims *models.JWTClaims) bool {
		return claims.CanAdminister()
	})
}

// RequireActive admits any authenticated active account.
func RequireActive() gin.HandlerFunc {
	return requireCapability(func(claims *models.JWTClaims) bool {
		return claims.Active
	})
}

func requireCapability(allowed func(*models.JWTClaims) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !allowed(claims) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
