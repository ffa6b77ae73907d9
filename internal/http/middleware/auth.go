// README: Bearer-token auth middleware; stores the verified caller on the gin context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"carpool/internal/infra"
	"carpool/internal/modules/ride"
	"carpool/internal/types"
)

const (
	ctxUID  = "auth.uid"
	ctxRole = "auth.role"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Auth rejects requests without a valid bearer token (401) or without a
// rider/driver role claim (403).
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "missing bearer token", Kind: "unauthorized"})
			return
		}
		id, err := verifier.VerifyToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || id == nil || id.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid token", Kind: "unauthorized"})
			return
		}
		role, ok := types.ParseRole(id.Role)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "token has no rider or driver role", Kind: "forbidden"})
			return
		}
		c.Set(ctxUID, id.UID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

func CallerRole(c *gin.Context) types.Role {
	v, _ := c.Get(ctxRole)
	role, _ := v.(types.Role)
	return role
}

// Caller is the capability handed to services.
func Caller(c *gin.Context) ride.Caller {
	return ride.Caller{ID: types.ID(CallerUID(c)), Role: CallerRole(c)}
}
