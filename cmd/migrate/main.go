// Command migrate applies the schema for the comment engine.
package main

import (
	"fmt"
	"log"

	_ "github.com/joho/godotenv/autoload"

	"modhub/internal/config"
	"modhub/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	// Connect only migrates outside production.
	if cfg.IsProduction() {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}
	log.Println("schema up to date")
	return nil
}
