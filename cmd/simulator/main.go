package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"measurements-service/internal/infra"
	_ "measurements-service/internal/pkg/dotenv/autoload"
	"measurements-service/internal/simulator"
)

func main() {
	var cfg simulator.Config
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8000", "base URL of the measurements API")
	flag.IntVar(&cfg.Devices, "devices", 5, "number of simulated devices")
	flag.DurationVar(&cfg.Interval, "interval", 2*time.Second, "delay between readings")
	flag.StringVar(&cfg.Prefix, "prefix", "sensor", "device id prefix")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := infra.NewLogger(os.Stdout, "measurements-simulator")
	defer func() { _ = logger.Sync() }()

	sim, err := simulator.New(cfg, logger)
	if err != nil {
		logger.Fatalf(ctx, "%v", err)
	}

	logger.Printf(ctx, "simulating %d devices against %s every %s", cfg.Devices, cfg.BaseURL, cfg.Interval)
	if err := sim.Run(ctx); err != nil {
		logger.Fatalf(ctx, "simulator stopped: %v", err)
	}
	logger.Println(ctx, "simulator stopped")
}
