package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const userLocalKey = "user"

// BearerAuth accepts requests whose bearer token is a key of tokens and
// stores the mapped user name in the request locals.
func BearerAuth(tokens map[string]string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication credentials were not provided",
			})
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authorization header must use the Bearer scheme",
			})
		}

		user, ok := tokens[strings.TrimSpace(token)]
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		c.Locals(userLocalKey, user)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) string {
	if user, ok := c.Locals(userLocalKey).(string); ok && user != "" {
		return user
	}
	return "anonymous"
}
