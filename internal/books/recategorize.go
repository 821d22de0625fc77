package books

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// CategoryLine assigns one amount to an expense category (account name).
type CategoryLine struct {
	Category string
	Amount   decimal.Decimal
}

type expenseDetail struct {
	AccountRef invoiceRef `json:"AccountRef"`
}

type recategorizeLine struct {
	Amount                        string        `json:"Amount"`
	DetailType                    string        `json:"DetailType"`
	AccountBasedExpenseLineDetail expenseDetail `json:"AccountBasedExpenseLineDetail"`
}

type recategorizePayload struct {
	ID        string             `json:"Id"`
	SyncToken string             `json:"SyncToken"`
	Line      []recategorizeLine `json:"Line"`
}

// Recategorize rewrites a transaction's line categorization: each given
// line becomes an account-based expense line posted to the account whose
// name matches the category. The live transaction is fetched first for
// its sync token; a stale token would make QuickBooks reject the update.
func (c *Client) Recategorize(ctx context.Context, txnID string, kind Kind, lines []CategoryLine) error {
	resp, err := c.Query(ctx, transactionByIDQuery(kind, txnID))
	if err != nil {
		return err
	}
	var records []struct {
		SyncToken string `json:"SyncToken"`
	}
	if raw, ok := resp[string(kind)]; ok {
		if err := json.Unmarshal(raw, &records); err != nil {
			return fmt.Errorf("decode %s record: %w", kind, err)
		}
	}
	if len(records) == 0 {
		return fmt.Errorf("transaction %s not found", txnID)
	}
	syncToken := records[0].SyncToken
	if syncToken == "" {
		syncToken = "0"
	}

	payload := recategorizePayload{ID: txnID, SyncToken: syncToken}
	for _, l := range lines {
		accountID, err := c.ResolveAccountID(ctx, l.Category)
		if err != nil {
			return err
		}
		payload.Line = append(payload.Line, recategorizeLine{
			Amount:     l.Amount.String(),
			DetailType: "AccountBasedExpenseLineDetail",
			AccountBasedExpenseLineDetail: expenseDetail{
				AccountRef: invoiceRef{Value: accountID},
			},
		})
	}

	endpoint := strings.ToLower(string(kind)) + "/" + txnID
	raw, err := c.Do(ctx, http.MethodPost, endpoint, nil, payload)
	if err != nil {
		return err
	}

	var updated map[string]json.RawMessage
	if err := json.Unmarshal(raw, &updated); err != nil {
		return fmt.Errorf("decode update response: %w", err)
	}
	if _, ok := updated[string(kind)]; !ok {
		return fmt.Errorf("unexpected update response: %s", string(raw))
	}
	c.log.Info().Str("txn_id", txnID).Str("kind", string(kind)).Msg("transaction recategorized")
	return nil
}
