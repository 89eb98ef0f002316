package auth

import (
	"watchparty/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware inspects for a token and sets the userID if present and valid,
// but does not fail if the token is missing or invalid.
func OptionalAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			if userID, err := jwt.ParseToken(secret, tokenString); err == nil {
				c.Set(UserIDKey, userID)
			}
		}
		c.Next()
	}
}
