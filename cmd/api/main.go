package main

import (
	"context"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"timbersim/adapters/postgres"
	"timbersim/internal/testkit"
	"timbersim/ports"
	"timbersim/ui"
)

func main() {
	// Load .env if present; environment wins otherwise.
	if err := godotenv.Load(); err != nil {
		log.Printf("[API] No .env file loaded: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	var (
		bases ports.BasisRepository
		runs  ports.RunRepository
	)
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			log.Fatalf("[API] Failed to connect to database: %v", err)
		}
		if err := postgres.Migrate(context.Background(), db); err != nil {
			log.Fatalf("[API] Migration failed: %v", err)
		}
		bases = postgres.NewBasisRepository(db)
		runs = postgres.NewRunRepository(db)
		log.Printf("[API] Using postgres persistence")
	} else {
		bases = testkit.NewInMemoryBasisRepository()
		runs = testkit.NewInMemoryRunRepository()
		log.Printf("[API] DATABASE_URL not set, using in-memory persistence")
	}

	app := ui.NewApp(bases, runs)
	if err := app.Start(ui.Config{Port: port}); err != nil {
		log.Fatalf("[API] Server failed: %v", err)
	}
}
