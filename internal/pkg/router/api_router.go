package router

import (
	"github.com/CrewBill/CrewBill/app/controllers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

// InstallRouter registers the contractor API and the provider webhook
// endpoints. Webhooks sit outside the limiter group: providers retry on
// non-2xx and a rate-limited retry storm would only feed itself.
func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "CrewBill reconciliation API",
		})
	})

	v1 := api.Group("/v1")
	v1.Get("/alerts", controllers.HandleListAlerts)
	v1.Get("/alerts/:id/events", controllers.HandleAlertEvents)
	v1.Post("/alerts/:id/fix", controllers.HandleFixAlert)
	v1.Post("/alerts/:id/resolve", controllers.HandleResolveAlert)

	v1.Post("/events", controllers.HandleIngestEvent)

	v1.Post("/approvals", controllers.HandleCreateApproval)
	v1.Get("/approvals", controllers.HandleListApprovals)

	webhooks := app.Group("/webhooks")
	webhooks.Post("/stripe", controllers.HandleStripeWebhook)
	webhooks.Post("/flutterwave", controllers.HandleFlutterwaveWebhook)
	webhooks.Post("/revenuecat", controllers.HandleRevenueCatWebhook)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
