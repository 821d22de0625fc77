package books_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"propertyops/internal/books"
)

func TestRecategorize(t *testing.T) {
	var posted []byte
	client := newTestClient(t, books.CompanyDjango, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			require.True(t, strings.HasSuffix(r.URL.Path, "/purchase/p1"))
			var err error
			posted, err = io.ReadAll(r.Body)
			require.NoError(t, err)
			w.Write([]byte(`{"Purchase":{"Id":"p1","SyncToken":"4"}}`))
			return
		}
		q := r.URL.Query().Get("query")
		switch {
		case strings.Contains(q, "FROM Purchase WHERE Id = 'p1'"):
			w.Write([]byte(`{"QueryResponse":{"Purchase":[{"Id":"p1","SyncToken":"3"}]}}`))
		case strings.Contains(q, "FROM Account WHERE Name = 'Repairs'"):
			w.Write([]byte(`{"QueryResponse":{"Account":[{"Id":"a-repairs"}]}}`))
		case strings.Contains(q, "FROM Account WHERE Name = 'Utilities'"):
			w.Write([]byte(`{"QueryResponse":{"Account":[{"Id":"a-utilities"}]}}`))
		default:
			w.Write([]byte(`{"QueryResponse":{}}`))
		}
	})

	err := client.Recategorize(context.Background(), "p1", books.KindPurchase, []books.CategoryLine{
		{Category: "Repairs", Amount: decimal.RequireFromString("80")},
		{Category: "Utilities", Amount: decimal.RequireFromString("20")},
	})
	require.NoError(t, err)

	var payload struct {
		ID        string `json:"Id"`
		SyncToken string `json:"SyncToken"`
		Line      []struct {
			Amount                        string `json:"Amount"`
			DetailType                    string `json:"DetailType"`
			AccountBasedExpenseLineDetail struct {
				AccountRef struct {
					Value string `json:"value"`
				} `json:"AccountRef"`
			} `json:"AccountBasedExpenseLineDetail"`
		} `json:"Line"`
	}
	require.NoError(t, json.Unmarshal(posted, &payload))
	require.Equal(t, "p1", payload.ID)
	require.Equal(t, "3", payload.SyncToken)
	require.Len(t, payload.Line, 2)
	require.Equal(t, "80", payload.Line[0].Amount)
	require.Equal(t, "AccountBasedExpenseLineDetail", payload.Line[0].DetailType)
	require.Equal(t, "a-repairs", payload.Line[0].AccountBasedExpenseLineDetail.AccountRef.Value)
	require.Equal(t, "a-utilities", payload.Line[1].AccountBasedExpenseLineDetail.AccountRef.Value)
}

func TestRecategorizeMissingTransaction(t *testing.T) {
	client := newTestClient(t, books.CompanyDjango, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"QueryResponse":{}}`))
	})

	err := client.Recategorize(context.Background(), "nope", books.KindBill, []books.CategoryLine{
		{Category: "Repairs", Amount: decimal.RequireFromString("10")},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), `transaction nope not found`)
}

func TestRecategorizeUnknownCategory(t *testing.T) {
	client := newTestClient(t, books.CompanyDjango, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		if strings.Contains(q, "FROM Purchase WHERE Id = 'p1'") {
			w.Write([]byte(`{"QueryResponse":{"Purchase":[{"Id":"p1","SyncToken":"0"}]}}`))
			return
		}
		w.Write([]byte(`{"QueryResponse":{}}`))
	})

	err := client.Recategorize(context.Background(), "p1", books.KindPurchase, []books.CategoryLine{
		{Category: "No Such Account", Amount: decimal.RequireFromString("10")},
	})

	var notFound *books.AccountNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "No Such Account", notFound.Name)
}
