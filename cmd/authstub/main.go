package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"blog-session/internal/app"
	"blog-session/internal/config"
	"blog-session/internal/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}
	cfg := config.LoadStub()

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := app.NewServer(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to start authstub", zap.Error(err))
	}

	if err := srv.Run(ctx); err != nil {
		lg.Error("authstub stopped with error", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("authstub stopped gracefully")
}
