package main

import (
	"context"
	"flag"
	"log"

	"github.com/viralforge/users-service/internal/adapters/postgres"
	"github.com/viralforge/users-service/internal/app/bootstrap"
)

func main() {
	configPath := flag.String("config", "configs/default.yaml", "path to the service config file")
	flag.Parse()

	direction := postgres.MigrateUp
	if flag.NArg() > 0 {
		direction = postgres.MigrateDirection(flag.Arg(0))
	}
	if err := bootstrap.RunMigrate(context.Background(), *configPath, direction); err != nil {
		log.Fatalf("migrate %s: %v", direction, err)
	}
}
