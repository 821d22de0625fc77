package books

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// CredentialSource resolves one company's credentials. A company whose
// credentials cannot be resolved is reported, not fatal.
type CredentialSource func(Company) (Credentials, error)

// Pool owns one authenticated client per configured company and fans
// report requests out across them. Companies whose session could not be
// built at construction time stay out of the client set; requesting them
// later yields "no client available".
type Pool struct {
	companies []Company
	clients   map[Company]*Client
	log       zerolog.Logger
}

// NewPool builds a session and client for each company. Construction
// failures (missing credentials, dead refresh tokens) are logged and the
// company is skipped; the pool itself always constructs.
func NewPool(ctx context.Context, source CredentialSource, companies []Company, opts Options) *Pool {
	if len(companies) == 0 {
		companies = AllCompanies()
	}
	opts = opts.withDefaults()

	p := &Pool{
		companies: companies,
		clients:   make(map[Company]*Client, len(companies)),
		log:       opts.Logger.With().Str("component", "pool").Logger(),
	}
	for _, company := range companies {
		creds, err := source(company)
		if err != nil {
			p.log.Warn().Err(err).Str("company", string(company)).Msg("could not resolve credentials")
			continue
		}
		session, err := NewSession(ctx, creds, opts)
		if err != nil {
			p.log.Warn().Err(err).Str("company", string(company)).Msg("could not initialize client")
			continue
		}
		p.clients[company] = NewClient(session, opts)
	}
	return p
}

// Client returns the client for a company, or an error when none was
// initialized.
func (p *Pool) Client(company Company) (*Client, error) {
	client, ok := p.clients[company]
	if !ok {
		return nil, fmt.Errorf("no client available for %s", company)
	}
	return client, nil
}

// Companies returns the companies the pool was configured with.
func (p *Pool) Companies() []Company { return p.companies }

// AggregateReport is the fleet-level AR aging result. Every requested
// company lands in exactly one of the three maps.
type AggregateReport struct {
	// Reports maps company to its formatted aging table (header row first).
	Reports map[Company][][]string
	// AuthErrors records companies whose credentials need operator action.
	AuthErrors map[Company]string
	// OtherErrors records every remaining per-company failure, including
	// companies with no initialized client.
	OtherErrors map[Company]string
}

// AgedReceivables fans the AR aging request out to every requested
// company concurrently (all companies when none are given). One
// company's failure never aborts the others: authentication failures are
// collected into AuthErrors, everything else into OtherErrors.
func (p *Pool) AgedReceivables(ctx context.Context, asOf time.Time, companies ...Company) *AggregateReport {
	if len(companies) == 0 {
		companies = p.companies
	}

	agg := &AggregateReport{
		Reports:     make(map[Company][][]string),
		AuthErrors:  make(map[Company]string),
		OtherErrors: make(map[Company]string),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(companies))

	for _, company := range companies {
		g.Go(func() error {
			client, ok := p.clients[company]
			if !ok {
				mu.Lock()
				agg.OtherErrors[company] = "no client available"
				mu.Unlock()
				return nil
			}

			raw, err := client.AgedReceivables(gctx, asOf)
			if err != nil {
				mu.Lock()
				if isAuthFailure(err) {
					p.log.Error().Err(err).Str("company", string(company)).Msg("authentication error")
					agg.AuthErrors[company] = err.Error()
				} else {
					p.log.Error().Err(err).Str("company", string(company)).Msg("aging report failed")
					agg.OtherErrors[company] = err.Error()
				}
				mu.Unlock()
				return nil
			}

			mu.Lock()
			agg.Reports[company] = FormatAgedReceivables(raw)
			mu.Unlock()
			return nil
		})
	}
	// Workers report failures through the aggregate, never through the group.
	_ = g.Wait()
	return agg
}

// Ping tests every initialized client and returns the company display
// names keyed by company, with per-company errors alongside.
func (p *Pool) Ping(ctx context.Context) (map[Company]string, map[Company]error) {
	names := make(map[Company]string)
	errs := make(map[Company]error)
	for _, company := range p.companies {
		client, ok := p.clients[company]
		if !ok {
			errs[company] = errors.New("no client available")
			continue
		}
		name, err := client.Ping(ctx)
		if err != nil {
			errs[company] = err
			continue
		}
		names[company] = name
	}
	return names, errs
}
