package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"propertyops/internal/books"
	"propertyops/internal/config"
	"propertyops/internal/notify"
)

func main() {
	_ = godotenv.Load()

	var (
		companiesFlag = flag.String("companies", "", "comma-separated company prefixes (default: all)")
		asOfFlag      = flag.String("as-of", "", "report date YYYY-MM-DD (default: today)")
		send          = flag.Bool("notify", false, "post the reports to the configured Teams channel")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	var asOf time.Time
	if *asOfFlag != "" {
		var err error
		asOf, err = time.Parse("2006-01-02", *asOfFlag)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid -as-of date")
		}
	}

	var companies []books.Company
	if *companiesFlag != "" {
		for _, c := range strings.Split(*companiesFlag, ",") {
			companies = append(companies, books.Company(strings.TrimSpace(c)))
		}
	}

	pool := books.NewPool(ctx, config.TenantCredentials, companies, books.Options{Logger: &logger})
	agg := pool.AgedReceivables(ctx, asOf)

	for company, rows := range agg.Reports {
		fmt.Printf("\n=== %s ===\n", company)
		for _, row := range rows {
			fmt.Println(strings.Join(row, " | "))
		}
	}
	for company, msg := range agg.AuthErrors {
		fmt.Printf("\n=== %s ===\nAUTH ERROR: %s\n", company, msg)
	}
	for company, msg := range agg.OtherErrors {
		fmt.Printf("\n=== %s ===\nERROR: %s\n", company, msg)
	}

	if *send {
		graphCfg, err := config.GraphSettings()
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier not configured")
		}
		notifier := notify.NewGraphNotifier(graphCfg, logger)

		for company, rows := range agg.Reports {
			subject := fmt.Sprintf("AR Aging: %s", company)
			if err := notifier.SendReport(ctx, subject, rows[0], rows[1:]); err != nil {
				logger.Error().Err(err).Str("company", string(company)).Msg("failed to send report")
			}
		}
		for company, msg := range agg.AuthErrors {
			subject := fmt.Sprintf("AR Aging: %s", company)
			if err := notifier.SendError(ctx, subject, msg); err != nil {
				logger.Error().Err(err).Str("company", string(company)).Msg("failed to send error notice")
			}
		}
		for company, msg := range agg.OtherErrors {
			subject := fmt.Sprintf("AR Aging: %s", company)
			if err := notifier.SendError(ctx, subject, msg); err != nil {
				logger.Error().Err(err).Str("company", string(company)).Msg("failed to send error notice")
			}
		}
	}

	if len(agg.AuthErrors) > 0 || len(agg.OtherErrors) > 0 {
		os.Exit(1)
	}
}
