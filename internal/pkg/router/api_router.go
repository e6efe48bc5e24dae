package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/mybizz/mybizz/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/_/api")

	// Paddle retries on its own schedule; never rate limit the webhook.
	api.Post("/paddle_webhook", h.deps.Webhook.HandleWebhook)

	api.Post("/admin/login", limiter.New(limiter.Config{Max: 10, Expiration: time.Minute}), h.deps.Auth.HandleLogin)
	api.Post("/admin/logout", h.deps.Auth.HandleLogout)

	admin := api.Group("/admin",
		limiter.New(limiter.Config{Max: 120, Expiration: time.Minute}),
		middleware.APIKeyAuthMiddleware(h.deps.Users),
		middleware.UserContextMiddleware(h.deps.Sessions),
		middleware.RequireAdminAPI,
	)
	admin.Get("/webhook-logs", h.deps.Admin.HandleListWebhookLogs)
	admin.Post("/webhook-logs/sweep", h.deps.Admin.HandleSweep)
	admin.Post("/webhook-logs/:id/reprocess", h.deps.Admin.HandleReprocess)
	admin.Post("/webhook-logs/:id/resolve", h.deps.Admin.HandleResolve)
	admin.Get("/hub/payload/:event_id", h.deps.Admin.HandleHubPayload)
	admin.Get("/queue", h.deps.Queue.HandleQueueStats)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
