package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mybizz/mybizz/internal/pkg/health"
)

type HttpRouter struct {
	health *health.Checker
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", h.health.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/monitor", monitor.New(monitor.Config{Title: "MyBizz Metrics"}))
}

func NewHttpRouter(checker *health.Checker) *HttpRouter {
	if checker == nil {
		checker = health.NewChecker(0)
	}
	return &HttpRouter{health: checker}
}
