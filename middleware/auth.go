package middleware

import (
	"splitledger/utils"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthRequired rejects requests without a valid bearer token and stores the
// caller's user ID in the context.
func AuthRequired(issuer *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			utils.Unauthorized(c, "Missing token")
			c.Abort()
			return
		}

		claims, err := issuer.ParseToken(token)
		if err != nil {
			utils.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		c.Set(utils.UserIDKey, claims.UserID)
		c.Next()
	}
}
