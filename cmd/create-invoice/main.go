package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"propertyops/internal/books"
	"propertyops/internal/config"
)

// Reads a JSON array of invoice line requests on stdin and submits one
// invoice per customer for the given company.
func main() {
	_ = godotenv.Load()

	companyFlag := flag.String("company", "", "company prefix (required)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	if *companyFlag == "" {
		logger.Fatal().Msg("-company is required")
	}

	var lines []books.InvoiceLineRequest
	if err := json.NewDecoder(os.Stdin).Decode(&lines); err != nil {
		logger.Fatal().Err(err).Msg("invalid JSON on stdin")
	}

	creds, err := config.TenantCredentials(books.Company(*companyFlag))
	if err != nil {
		logger.Fatal().Err(err).Msg("could not resolve credentials")
	}
	session, err := books.NewSession(ctx, creds, books.Options{Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("could not open session")
	}
	client := books.NewClient(session, books.Options{Logger: &logger})

	result, err := client.CreateInvoices(ctx, lines)
	if err != nil {
		logger.Fatal().Err(err).Msg("invoice creation failed")
	}

	for _, inv := range result.Invoices {
		fmt.Printf("created %s for %s: %s\n", inv.DocNumber, inv.Customer, inv.URL)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(os.Stderr, "failed: %v\n", f)
	}
	if len(result.Failures) > 0 {
		os.Exit(1)
	}
}
