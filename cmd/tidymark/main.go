package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/PanHywel/TidyMark-sub000/internal/app"
	"github.com/PanHywel/TidyMark-sub000/internal/config"
	"github.com/PanHywel/TidyMark-sub000/internal/logging"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Run(ctx, os.Args[1:]); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
