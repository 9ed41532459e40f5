package main

import (
	"os"

	"tracker_server/adapter/in/cli"
	"tracker_server/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	// Initialize logger early; the serve command applies LOG_LEVEL once config is loaded.
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "tracker",
		Console: os.Getenv("ENV") == "" || os.Getenv("ENV") == "development",
	})
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	if err := cli.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
