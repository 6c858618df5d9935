package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/campuskit/license-exception-api/internal/models"
	appErrors "github.com/campuskit/license-exception-api/pkg/errors"
	"github.com/campuskit/license-exception-api/pkg/response"
)

// RequireRoles enforces the coarse role label for routes. The label is
// a closed enumeration; per-program approval authority is checked in
// the decision engine against the approvers table, not here.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// CurrentActor extracts the authenticated principal from the context.
func CurrentActor(c *gin.Context) (models.Actor, bool) {
	claimsValue, exists := c.Get(ContextUserKey)
	if !exists {
		return models.Actor{}, false
	}
	claims, ok := claimsValue.(*models.JWTClaims)
	if !ok {
		return models.Actor{}, false
	}
	return claims.Actor(), true
}
