package middleware

import (
	"strings"

	"multiai-telebot/backend/pkg/errors"
	"multiai-telebot/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware guards the ops API: the request must carry a valid
// bearer token issued by the admin login endpoint.
func JWTAuthMiddleware(svc *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.Error(errors.NewUnauthorizedError(errors.CodeValidation, "missing bearer token"))
			c.Abort()
			return
		}

		claims, err := svc.Validate(token)
		if err != nil {
			c.Error(errors.NewUnauthorizedError(errors.CodeValidation, "invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("role", claims.Role)
		c.Next()
	}
}
