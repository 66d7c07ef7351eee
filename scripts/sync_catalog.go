package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cleanops/internal/config"
	"cleanops/internal/database"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/cleanops.db", "path to sqlite db")
		dryRun      = flag.Bool("dry-run", false, "validate the catalog without writing")
	)
	flag.Parse()

	catalog, err := config.LoadCatalog(*catalogPath)
	if err != nil {
		return err
	}
	fmt.Printf("catalog ok: services=%d checklist_items=%d employees=%d\n",
		len(catalog.Services), len(catalog.ChecklistItems), len(catalog.Employees))
	if *dryRun {
		return nil
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.SyncCatalog(ctx, catalog); err != nil {
		return fmt.Errorf("sync catalog: %w", err)
	}

	services, err := db.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}
	employees, err := db.ListEmployees(ctx, true)
	if err != nil {
		return fmt.Errorf("list employees: %w", err)
	}
	fmt.Printf("done: services=%d active_employees=%d\n", len(services), len(employees))
	return nil
}
