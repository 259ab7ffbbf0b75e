package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradeway/forecast-service/internal/config"
	"github.com/tradeway/forecast-service/internal/database"
	"github.com/tradeway/forecast-service/internal/logging"
	"github.com/tradeway/forecast-service/internal/seed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := seed.DefaultOptions()
	flag.IntVar(&opts.Products, "products", opts.Products, "number of products to create")
	flag.IntVar(&opts.Orders, "orders", opts.Orders, "number of orders to create")
	flag.IntVar(&opts.MonthsBack, "months", opts.MonthsBack, "spread orders over this many past months")
	seedValue := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	reset := flag.Bool("reset", true, "delete existing orders and products first")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.NewLogrusLogger(cfg.LogLevel, cfg.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	traced := database.NewTracedDB(db.Pool, logger)
	if err := database.Migrate(ctx, traced); err != nil {
		return err
	}

	if *reset {
		if _, err := traced.Exec(ctx, "TRUNCATE orders, products"); err != nil {
			return fmt.Errorf("failed to reset tables: %w", err)
		}
	}

	ds := seed.NewGenerator(*seedValue, time.Now()).Generate(opts)
	if err := seed.Load(ctx, traced, ds); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"products": len(ds.Products),
		"orders":   len(ds.Orders),
		"seed":     *seedValue,
	}).Info("Seed complete")
	return nil
}
