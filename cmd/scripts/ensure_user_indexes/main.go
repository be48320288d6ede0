package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wuwenbin0122/authgate/internal/db"
	"github.com/wuwenbin0122/authgate/internal/utils"
)

// Creates the unique user indexes ahead of the first request and prints what exists.
func main() {
	if err := utils.LoadEnvFiles(); err != nil {
		log.Fatalf("load env files: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	store, err := db.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		log.Fatalf("connect mongo: %v", err)
	}
	defer store.Close(ctx)

	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("ensure indexes: %v", err)
	}

	specs, err := store.Users.Indexes().ListSpecifications(ctx)
	if err != nil {
		log.Fatalf("list indexes: %v", err)
	}

	fmt.Printf("indexes on %s.%s:\n", cfg.Mongo.Database, store.Users.Name())
	for _, spec := range specs {
		unique := spec.Unique != nil && *spec.Unique
		fmt.Printf("- %s %s unique=%t\n", spec.Name, spec.KeysDocument, unique)
	}

	fmt.Printf("done at %s\n", time.Now().Format(time.RFC3339))
}
