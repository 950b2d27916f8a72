package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"relay/cmd/migration/initialize"
	"relay/internal/app"
	"relay/internal/handlers"
	"relay/internal/logger"

	"github.com/gofiber/fiber/v2"
)

func main() {
	log := logger.New("main")

	application, err := app.New()
	if err != nil {
		log.Er("failed to create app", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := initialize.InitializeTables(application.Database.SQL, application.Config, log); err != nil {
		log.Er("failed to migrate tables", err)
		os.Exit(1)
	}

	server := fiber.New(fiber.Config{
		AppName:               "relay",
		DisableStartupMessage: true,
	})

	if err := handlers.Router(server, application); err != nil {
		log.Er("failed to register routes", err)
		os.Exit(1)
	}

	go func() {
		address := fmt.Sprintf("%s:%d", application.Config.ServerHost, application.Config.ServerPort)
		log.Info("Starting server", "address", address)
		if err := server.Listen(address); err != nil {
			log.Er("server stopped", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if err := server.Shutdown(); err != nil {
		log.Er("failed to shut down server", err)
	}
}
