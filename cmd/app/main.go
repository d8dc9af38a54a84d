package main

import (
	"flag"
	"log"
	"os"

	"github.com/aleksgain/crypto-market-analyzer/internal/di"
	"github.com/aleksgain/crypto-market-analyzer/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s symbols=%v horizons=%v",
		cfg.Environment, cfg.Prediction.Symbols, cfg.Prediction.HorizonDays)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	defer cleanup()

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
