package router

import (
	"github.com/CrewBill/CrewBill/app/controllers"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

// InstallRouter registers the client-facing routes. These are reached from
// the link mailed to the client; the token in the path is the only
// credential.
func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/approve/:token", controllers.HandleShowApproval)
	app.Post("/approve/:token", controllers.HandleDecideApproval)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
