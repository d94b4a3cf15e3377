package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"FinRank/internal/di"
	"FinRank/internal/usecase"
	"FinRank/pkg/config"
)

// retrain runs one full retrain of every segment and prints the report.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	envFile := flag.String("env", ".env", "optional dotenv file")
	force := flag.Bool("force", true, "retrain segments that already have a model")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	orch, cleanup, err := di.InitializeOrchestrator(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Retrain.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Retrain.Timeout)
		defer cancel()
	}

	report, runErr := orch.RetrainAll(ctx, usecase.RetrainOptions{Force: *force, RequestedBy: "cli"})
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Printf("encode report: %v", err)
		}
	}
	if runErr != nil {
		log.Printf("retrain failed: %v", runErr)
		cleanup()
		os.Exit(1)
	}
}
