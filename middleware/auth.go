package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"feedcompose/utils"
)

// RequireAuth validates the request's JWT and stores the subject user id
// in Locals("user_id"). The token is read from the Authorization header
// (Bearer scheme) or the "token" cookie.
func RequireAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := extractToken(c)
		if tokenString == "" {
			return utils.UnauthorizedError(fmt.Errorf("missing token"))
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.UnauthorizedError(err)
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.UnauthorizedError(fmt.Errorf("unexpected claims type"))
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			return utils.UnauthorizedError(fmt.Errorf("token missing subject"))
		}

		c.Locals("user_id", sub)
		return c.Next()
	}
}

func extractToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Cookies("token")
}
