package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/mybizz/mybizz/app/controllers"
	"github.com/mybizz/mybizz/app/repository"
	"github.com/mybizz/mybizz/internal/pkg/health"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the wired controllers and auth collaborators.
type Dependencies struct {
	Webhook  *controllers.PaddleWebhookController
	Admin    *controllers.AdminWebhookController
	Queue    *controllers.AdminQueueController
	Auth     *controllers.AuthController
	Users    repository.UserRepository
	Sessions *session.Store
	// Health backs GET /health. Nil reports ok without probing anything.
	Health *health.Checker
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// Operational routes first so they stay outside the API limiter.
	setup(app, NewHttpRouter(deps.Health), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
