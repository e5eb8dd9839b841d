package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"grocery-delivery/internal/common/httpx"
)

const identityKey = "identity"

// RequireUser rejects requests without a valid Authorization bearer token.
func RequireUser(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Verify(c.GetHeader("Authorization"))
		if err != nil {
			httpx.WriteProblem(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAdmin must run after RequireUser.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok || !id.IsAdmin() {
			httpx.WriteProblem(c, http.StatusForbidden, "forbidden", "admin only")
			return
		}
		c.Next()
	}
}

func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
