package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// userPrincipalHeader carries the authenticated user's id, injected by
// the fronting auth proxy.
const userPrincipalHeader = "X-Ms-Client-Principal-Id"

const userIDKey = "user_principal_id"

// requireUserPrincipal rejects any request without an authenticated
// user id. Every endpoint is user-scoped; there is no anonymous access.
func requireUserPrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userPrincipalHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "no user principal found in request headers",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// userID returns the authenticated user id set by the middleware.
func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
