package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vendra-system/internal/lifecycle"
	"vendra-system/internal/utils"
)

const actorContextKey = "actor"

// JWTAuth parses the bearer token and stores the caller as a lifecycle.Actor
// in the request context. The engine re-validates organization ownership on
// every operation; this layer only establishes identity.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "missing bearer token",
			})
			return
		}

		claims, err := utils.ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "invalid token",
			})
			return
		}

		c.Set(actorContextKey, lifecycle.Actor{
			UserID: claims.UserId,
			OrgID:  claims.OrgId,
			Role:   claims.Role,
		})
		c.Next()
	}
}

// ActorFromContext returns the authenticated actor set by JWTAuth.
func ActorFromContext(c *gin.Context) (lifecycle.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return lifecycle.Actor{}, false
	}
	actor, ok := v.(lifecycle.Actor)
	return actor, ok
}
