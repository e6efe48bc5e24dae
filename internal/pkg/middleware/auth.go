package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mybizz/mybizz/internal/pkg/usercontext"
)

// RequireAdminAPI ensures an authenticated admin and answers JSON otherwise.
func RequireAdminAPI(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if !userCtx.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin access required",
		})
	}
	return c.Next()
}
