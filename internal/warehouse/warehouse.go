// Package warehouse loads normalized QuickBooks transactions into the
// reporting warehouse. It is a narrow collaborator of the books layer:
// rows in, nothing out but a load receipt.
package warehouse

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"propertyops/internal/books"
)

// NewPool connects to the warehouse database and verifies the connection.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse warehouse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create warehouse pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping warehouse: %w", err)
	}

	return pool, nil
}

// LoadResult is the receipt for one completed batch.
type LoadResult struct {
	LoadID   string
	ETLCount int
	Rows     int
}

// Loader writes transaction lines into qb_transaction_lines.
type Loader struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewLoader constructs a Loader backed by the given pool.
func NewLoader(pool *pgxpool.Pool, logger zerolog.Logger) *Loader {
	return &Loader{pool: pool, log: logger.With().Str("component", "warehouse").Logger()}
}

// LoadTransactions inserts one row per transaction line (a single row
// for line-less transactions), all tagged with one load id and an etl
// count one past the company's previous maximum. The batch commits
// atomically: a failed insert rolls the whole load back.
func (l *Loader) LoadTransactions(ctx context.Context, company books.Company, txns []books.Transaction) (*LoadResult, error) {
	if len(txns) == 0 {
		return &LoadResult{}, nil
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin load transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var etlCount int
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(etl_count), 0) + 1 FROM qb_transaction_lines WHERE company = $1",
		string(company),
	).Scan(&etlCount)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve etl count: %w", err)
	}

	loadID := uuid.NewString()
	rows := 0

	const insert = `
		INSERT INTO qb_transaction_lines
			(company, txn_id, txn_type, txn_date, total_amount, memo, entity_name, entity_id,
			 line_num, line_amount, line_description, account_id, account_name, detail_type,
			 etl_load_id, etl_count, etl_date)
		VALUES ($1, $2, $3, NULLIF($4, '')::date, $5, $6, $7, $8,
		        $9, $10, $11, $12, $13, $14,
		        $15, $16, NOW())`

	for _, txn := range txns {
		lines := txn.Lines
		if len(lines) == 0 {
			lines = []books.LineItem{{Amount: txn.Amount}}
		}
		for _, line := range lines {
			if _, err := tx.Exec(ctx, insert,
				string(company), txn.ID, string(txn.Kind), txn.Date, txn.Amount, txn.Memo,
				txn.EntityName, txn.EntityID,
				line.LineNum, line.Amount, line.Description,
				line.AccountID, line.AccountName, line.DetailType,
				loadID, etlCount,
			); err != nil {
				return nil, fmt.Errorf("failed to insert line for transaction %s: %w", txn.ID, err)
			}
			rows++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit load: %w", err)
	}

	l.log.Info().
		Str("company", string(company)).
		Str("load_id", loadID).
		Int("rows", rows).
		Int("etl_count", etlCount).
		Msg("warehouse load complete")

	return &LoadResult{LoadID: loadID, ETLCount: etlCount, Rows: rows}, nil
}
