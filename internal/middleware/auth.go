package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/prescripto-api/internal/utils"
)

// Context keys set by the auth middleware.
const (
	ContextPrincipalID = "principalID"
	ContextRole        = "role"
)

// Header carrying each role's token.
var roleHeaders = map[string]string{
	utils.RoleUser:   "token",
	utils.RoleDoctor: "dtoken",
	utils.RoleAdmin:  "atoken",
}

const notAuthorized = "Not Authorized Login Again"

// AuthMiddleware admits requests carrying a valid token for role. Failures are
// reported with HTTP 200 and success=false, like every other API error.
func AuthMiddleware(jwt *utils.JWTManager, role string) gin.HandlerFunc {
	header := roleHeaders[role]
	return func(c *gin.Context) {
		tokenString := c.GetHeader(header)
		if tokenString == "" {
			tokenString = bearerToken(c.GetHeader("Authorization"))
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"success": false, "message": notAuthorized})
			return
		}

		claims, err := jwt.ValidateJWT(tokenString)
		if err != nil || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"success": false, "message": notAuthorized})
			return
		}

		// Set principal info in the context for handlers to use
		c.Set(ContextPrincipalID, claims.UserID)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

func bearerToken(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// PrincipalID returns the id of the authenticated principal.
func PrincipalID(c *gin.Context) string {
	return c.GetString(ContextPrincipalID)
}
