package main

import (
	"flag"
	"os"

	"relay/cmd/migration/initialize"
	"relay/cmd/migration/seed"
	"relay/config"
	"relay/internal/database"
	"relay/internal/logger"
)

func main() {
	log := logger.New("migration")

	seedData := flag.Bool("seed", false, "seed development data after migrating")
	flag.Parse()

	config, err := config.InitConfig()
	if err != nil {
		log.Er("failed to initialize config", err)
		os.Exit(1)
	}

	db, err := database.New(config)
	if err != nil {
		log.Er("failed to create database", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := initialize.InitializeTables(db.SQL, config, log); err != nil {
		log.Er("failed to initialize tables", err)
		os.Exit(1)
	}

	if *seedData {
		if err := seed.Seed(db.SQL, config, log); err != nil {
			log.Er("failed to seed data", err)
			os.Exit(1)
		}
	}

	log.Info("Migration complete")
}
