package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"propertyops/internal/books"
	"propertyops/internal/config"
)

// Tests the QuickBooks connection for every configured company.
func main() {
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	pool := books.NewPool(ctx, config.TenantCredentials, nil, books.Options{Logger: &logger})
	names, errs := pool.Ping(ctx)

	failed := false
	for _, company := range pool.Companies() {
		if name, ok := names[company]; ok {
			fmt.Printf("✓ %s: connected to %q\n", company, name)
			continue
		}
		failed = true
		fmt.Printf("✗ %s: %v\n", company, errs[company])
	}
	if failed {
		os.Exit(1)
	}
}
