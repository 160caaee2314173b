package bootstrap

import (
	"net/http"

	"landlease/internal/config"
	"landlease/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless hosting (the api handler imports this package, not internal).
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app, _, _, err := router.CreateApp(cfg)
	return app, err
}

// Handler adapts app to net/http.
func Handler(app *fiber.App) http.Handler {
	return router.Handler(app)
}
