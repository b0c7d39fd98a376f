package main

import (
	"os"

	"github.com/DRSN-tech/order-backend/internal/app"
	config "github.com/DRSN-tech/order-backend/internal/cfg"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	log := logger.NewSlogLogger()
	if envErr != nil {
		log.Debugf(".env file not loaded: %v", envErr)
	}

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		os.Exit(1)
	}
}
