package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/mybizz/mybizz/internal/pkg/usercontext"
)

// UserContextMiddleware loads the admin session into the request user context.
// Requests without a session continue as anonymous.
func UserContextMiddleware(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if usercontext.IsLoggedIn(c) {
			return c.Next()
		}

		sess, err := store.Get(c)
		if err != nil {
			setUserContext(c, usercontext.UserContext{})
			return c.Next()
		}

		userID, ok := sess.Get(usercontext.KeyUserID).(uint)
		if !ok || userID == 0 {
			setUserContext(c, usercontext.UserContext{})
			return c.Next()
		}

		username, _ := sess.Get(usercontext.KeyUsername).(string)
		isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)
		setUserContext(c, usercontext.UserContext{
			UserID:     userID,
			Username:   username,
			IsLoggedIn: true,
			IsAdmin:    isAdmin,
			AuthMethod: usercontext.AuthMethodSession,
		})
		return c.Next()
	}
}

func setUserContext(c *fiber.Ctx, userCtx usercontext.UserContext) {
	c.Locals(usercontext.KeyUserContext, userCtx)
	c.Locals(usercontext.KeyFromProtected, userCtx.IsLoggedIn)
	c.Locals(usercontext.KeyIsAdmin, userCtx.IsAdmin)
	if userCtx.IsLoggedIn {
		c.Locals(usercontext.KeyUserID, userCtx.UserID)
		c.Locals(usercontext.KeyUsername, userCtx.Username)
	}
}
