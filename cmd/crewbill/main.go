package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/CrewBill/CrewBill/app/repository"
	"github.com/CrewBill/CrewBill/internal/pkg/alerts"
	"github.com/CrewBill/CrewBill/internal/pkg/approval"
	"github.com/CrewBill/CrewBill/internal/pkg/cache"
	"github.com/CrewBill/CrewBill/internal/pkg/database"
	"github.com/CrewBill/CrewBill/internal/pkg/env"
	"github.com/CrewBill/CrewBill/internal/pkg/invoicing"
	"github.com/CrewBill/CrewBill/internal/pkg/notify"
	"github.com/CrewBill/CrewBill/internal/pkg/router"
	"github.com/CrewBill/CrewBill/internal/pkg/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	app := NewApplication()

	// Shut the background workers down before the listener dies so in-flight
	// sweeps and notification sends finish cleanly.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		scheduler.GetManager().Stop()
		notify.GetQueue().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	notify.GetQueue().Start()
	startScheduler()

	app := fiber.New(fiber.Config{
		AppName: "CrewBill Reconciliation",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app)

	return app
}

func startScheduler() {
	repos := repository.GetGlobalRepositories()
	dispatcher := notify.GetDispatcher()
	alertService := alerts.NewService(repos.Alert, repos.Receipt, repos.VoiceLog, repos.Invoice, repos.Approval, repos.User, dispatcher)
	invoicingService := invoicing.NewService(repos.Invoice, alertService)
	approvalService := approval.NewService(repos.Approval, repos.User, invoicingService, alertService, dispatcher)

	sweeper := scheduler.NewSweeper(repos.Approval, repos.Invoice, repos.User, approvalService, alertService, dispatcher)
	scheduler.InitializeManager(sweeper).Start()
}
