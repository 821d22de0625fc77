package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"propertyops/internal/books"
	"propertyops/internal/config"
	"propertyops/internal/warehouse"
)

func main() {
	_ = godotenv.Load()

	var (
		companyFlag = flag.String("company", "", "company prefix (required)")
		startFlag   = flag.String("start", "", "start date YYYY-MM-DD (default: 100 days back)")
		endFlag     = flag.String("end", "", "end date YYYY-MM-DD (default: today)")
		accountFlag = flag.String("account", "", "keep only transactions touching this account")
		dryRun      = flag.Bool("dry-run", false, "pull and print without loading the warehouse")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	if *companyFlag == "" {
		logger.Fatal().Msg("-company is required")
	}
	company := books.Company(*companyFlag)

	query := books.TransactionQuery{FilterAccount: *accountFlag}
	var err error
	if *startFlag != "" {
		if query.Start, err = time.Parse("2006-01-02", *startFlag); err != nil {
			logger.Fatal().Err(err).Msg("invalid -start date")
		}
	}
	if *endFlag != "" {
		if query.End, err = time.Parse("2006-01-02", *endFlag); err != nil {
			logger.Fatal().Err(err).Msg("invalid -end date")
		}
	}

	creds, err := config.TenantCredentials(company)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not resolve credentials")
	}
	session, err := books.NewSession(ctx, creds, books.Options{Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("could not open session")
	}
	client := books.NewClient(session, books.Options{Logger: &logger})

	txns, skipped, err := client.Transactions(ctx, query)
	if err != nil {
		logger.Fatal().Err(err).Msg("transaction pull failed")
	}
	for _, s := range skipped {
		logger.Warn().Str("txn_id", s.ID).Str("kind", string(s.Kind)).Str("reason", s.Reason).Msg("skipped record")
	}
	logger.Info().Int("transactions", len(txns)).Int("skipped", len(skipped)).Msg("pull complete")

	if *dryRun {
		for _, t := range txns {
			fmt.Printf("%s %-12s %-10s %10s  %s\n", t.ID, t.Kind, t.Date, t.Amount.StringFixed(2), t.EntityName)
		}
		return
	}

	url, err := config.WarehouseURL()
	if err != nil {
		logger.Fatal().Err(err).Msg("warehouse not configured")
	}
	pool, err := warehouse.NewPool(ctx, url)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to warehouse")
	}
	defer pool.Close()

	result, err := warehouse.NewLoader(pool, logger).LoadTransactions(ctx, company, txns)
	if err != nil {
		logger.Fatal().Err(err).Msg("warehouse load failed")
	}
	fmt.Printf("Loaded %d rows (load %s, etl count %d)\n", result.Rows, result.LoadID, result.ETLCount)
}
