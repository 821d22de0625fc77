package books_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"propertyops/internal/books"
)

const agingReportBody = `{
	"Rows": {"Row": [
		{"ColData": [
			{"value": "Acme Property LLC"}, {"value": ""}, {"value": "1200.5"},
			{"value": ""}, {"value": ""}, {"value": ""}, {"value": "1200.5"}
		]},
		{"type": "Section", "group": "GrandTotal", "Summary": {"ColData": [
			{"value": "TOTAL"}, {"value": "0"}, {"value": "1200.5"},
			{"value": "0"}, {"value": "0"}, {"value": "0"}, {"value": "1200.5"}
		]}}
	]}
}`

// newTestPool builds a pool over a fake fleet: DJANGO reports cleanly,
// CMR is always unauthorized, STANDARD_MANAGEMENT_COMPANY errors
// server-side, and STANDARD_PROPERTIES has no credentials at all.
func newTestPool(t *testing.T, companies []books.Company) *books.Pool {
	t.Helper()
	tokenSrv, _, _ := newTokenServer(t)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/realm-DJANGO/"):
			if strings.Contains(r.URL.Path, "companyinfo") {
				w.Write([]byte(`{"CompanyInfo":{"CompanyName":"Django Properties"}}`))
				return
			}
			require.Equal(t, "30", r.URL.Query().Get("aging_period"))
			require.Equal(t, "4", r.URL.Query().Get("num_periods"))
			require.Equal(t, "2026-08-31", r.URL.Query().Get("report_date"))
			w.Write([]byte(agingReportBody))
		case strings.HasPrefix(r.URL.Path, "/realm-CMR/"):
			w.WriteHeader(http.StatusUnauthorized)
		case strings.HasPrefix(r.URL.Path, "/realm-STANDARD_MANAGEMENT_COMPANY/"):
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"Fault":{"Error":[{"Message":"Internal server error","Detail":"try again"}]}}`))
		default:
			t.Errorf("unexpected realm path %s", r.URL.Path)
		}
	}))
	t.Cleanup(apiSrv.Close)

	source := func(company books.Company) (books.Credentials, error) {
		if company == books.CompanyStandardProps {
			return books.Credentials{}, fmt.Errorf("no credentials for %s", company)
		}
		return testCreds(company), nil
	}
	return books.NewPool(context.Background(), source, companies,
		books.Options{TokenURL: tokenSrv.URL, BaseURL: apiSrv.URL})
}

func TestPoolAgedReceivablesPartitionsOutcomes(t *testing.T) {
	pool := newTestPool(t, books.AllCompanies())
	asOf := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	agg := pool.AgedReceivables(context.Background(), asOf)

	// Every company lands in exactly one bucket.
	require.Len(t, agg.Reports, 1)
	require.Len(t, agg.AuthErrors, 1)
	require.Len(t, agg.OtherErrors, 2)

	rows := agg.Reports[books.CompanyDjango]
	require.Equal(t, books.AgingHeader, rows[0])
	require.Equal(t, []string{"Acme Property LLC", "$0.00", "$1,200.50", "$0.00", "$0.00", "$0.00", "$1,200.50"},
		rows[1])
	require.Equal(t, []string{"TOTAL", "$0.00", "$1,200.50", "$0.00", "$0.00", "$0.00", "$1,200.50"},
		rows[2])

	require.Contains(t, agg.AuthErrors[books.CompanyCMR], "authentication failed")
	require.Contains(t, agg.OtherErrors[books.CompanyStandardMgmt], "Internal server error")
	require.Equal(t, "no client available", agg.OtherErrors[books.CompanyStandardProps])
}

func TestPoolAgedReceivablesSubset(t *testing.T) {
	pool := newTestPool(t, books.AllCompanies())
	asOf := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	agg := pool.AgedReceivables(context.Background(), asOf, books.CompanyDjango)

	require.Len(t, agg.Reports, 1)
	require.Empty(t, agg.AuthErrors)
	require.Empty(t, agg.OtherErrors)
}

func TestPoolClientLookup(t *testing.T) {
	pool := newTestPool(t, books.AllCompanies())

	client, err := pool.Client(books.CompanyDjango)
	require.NoError(t, err)
	require.Equal(t, books.CompanyDjango, client.Company())

	_, err = pool.Client(books.CompanyStandardProps)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no client available for STANDARD_PROPERTIES")
}

func TestPoolPing(t *testing.T) {
	pool := newTestPool(t, []books.Company{books.CompanyDjango, books.CompanyStandardProps})

	names, errs := pool.Ping(context.Background())

	require.Equal(t, "Django Properties", names[books.CompanyDjango])
	require.Error(t, errs[books.CompanyStandardProps])
	require.NotContains(t, names, books.CompanyStandardProps)
}
