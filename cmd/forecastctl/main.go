package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/popanda44/seedvalidator-finance/internal/config"
	"github.com/popanda44/seedvalidator-finance/internal/logging"
	"github.com/popanda44/seedvalidator-finance/internal/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Offline: series come from files, so no store or cache is attached.
	logger := logging.NewLogger("warn", cfg.Environment)
	logger.SetOutput(os.Stderr)
	svc := services.NewForecastService(nil, nil, cfg.Forecast, logger, nil)

	if err := newRootCmd(svc).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
