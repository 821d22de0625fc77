package books

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNormalizePurchase(t *testing.T) {
	raw := json.RawMessage(`{
		"Id": "145",
		"TxnDate": "2024-03-10",
		"TotalAmt": 245.50,
		"PrivateNote": "March supplies",
		"DocNumber": "1042",
		"PaymentType": "CreditCard",
		"SyncToken": "3",
		"VendorRef": {"value": "56", "name": "Ace Hardware"},
		"PaymentMethodRef": {"value": "2", "name": "Visa"},
		"CurrencyRef": {"value": "USD", "name": "United States Dollar"},
		"MetaData": {"CreateTime": "2024-03-10T08:00:00-07:00", "LastUpdatedTime": "2024-03-11T08:00:00-07:00"},
		"Line": [
			{
				"Amount": 200.00,
				"Description": "Paint",
				"DetailType": "AccountBasedExpenseLineDetail",
				"LineNum": 1,
				"AccountBasedExpenseLineDetail": {"AccountRef": {"value": "83", "name": "6300 Reimbursable Expenses"}}
			},
			{
				"Amount": 45.50,
				"Description": "Brushes",
				"DetailType": "AccountBasedExpenseLineDetail",
				"LineNum": 2,
				"AccountBasedExpenseLineDetail": {"AccountRef": {"value": "84", "name": "6400 Supplies"}}
			}
		]
	}`)

	txn, err := normalizeTransaction(raw, KindPurchase)
	require.NoError(t, err)

	require.Equal(t, "145", txn.ID)
	require.Equal(t, KindPurchase, txn.Kind)
	require.Equal(t, "2024-03-10", txn.Date)
	require.True(t, txn.Amount.Equal(decimal.RequireFromString("245.50")))
	require.Equal(t, "March supplies", txn.Memo)
	require.Equal(t, "Ace Hardware", txn.EntityName)
	require.Equal(t, "56", txn.EntityID)
	require.Equal(t, "Visa", txn.PaymentMethod)
	require.Equal(t, "United States Dollar", txn.Currency)

	require.Len(t, txn.Lines, 2)
	require.Equal(t, "83", txn.Lines[0].AccountID)
	require.Equal(t, "6300 Reimbursable Expenses", txn.Lines[0].AccountName)
	require.Equal(t, 1, txn.Lines[0].LineNum)

	// Top-level account defaults to the first line's account.
	require.Equal(t, "83", txn.AccountID)
	require.Equal(t, "6300 Reimbursable Expenses", txn.AccountName)
}

func TestNormalizeBillExtras(t *testing.T) {
	raw := json.RawMessage(`{
		"Id": "77",
		"TxnDate": "2024-02-01",
		"TotalAmt": 1200,
		"DueDate": "2024-03-01",
		"Balance": 600,
		"Status": "Open",
		"VendorRef": {"value": "9", "name": "City Utilities"},
		"Line": []
	}`)

	txn, err := normalizeTransaction(raw, KindBill)
	require.NoError(t, err)
	require.Equal(t, "2024-03-01", txn.DueDate)
	require.True(t, txn.Balance.Equal(decimal.NewFromInt(600)))
	require.Equal(t, "Open", txn.Status)

	// No lines means no top-level account.
	require.Empty(t, txn.AccountID)
	require.Empty(t, txn.AccountName)
}

func TestNormalizeJournalEntryDetailDispatch(t *testing.T) {
	raw := json.RawMessage(`{
		"Id": "300",
		"TxnDate": "2024-01-15",
		"TotalAmt": 50,
		"Adjustment": true,
		"Line": [
			{
				"Amount": 50,
				"DetailType": "JournalEntryLineDetail",
				"JournalEntryLineDetail": {"AccountRef": {"value": "12", "name": "1000 Cash"}}
			},
			{
				"Amount": 50,
				"DetailType": "SalesItemLineDetail",
				"SalesItemLineDetail": {"AccountRef": {"value": "40", "name": "4100 Rent"}}
			}
		]
	}`)

	txn, err := normalizeTransaction(raw, KindJournalEntry)
	require.NoError(t, err)
	require.True(t, txn.Adjustment)
	require.Equal(t, "12", txn.Lines[0].AccountID)
	require.Equal(t, "40", txn.Lines[1].AccountID)
}

func TestNormalizeExpenseExtrasAndDefaults(t *testing.T) {
	raw := json.RawMessage(`{
		"Id": "88",
		"TxnDate": "2024-04-01",
		"TotalAmt": "not-a-number",
		"DocNumber": "CHK-22",
		"CheckNum": "22",
		"PaymentMethodRef": {"value": "3", "name": "Check"},
		"CustomerRef": {"value": "7", "name": "Maple Tenants LLC"},
		"Line": [
			{"Amount": "oops", "DetailType": "AccountBasedExpenseLineDetail"}
		]
	}`)

	txn, err := normalizeTransaction(raw, KindExpense)
	require.NoError(t, err)

	// Unparsable numerics default to zero instead of failing the record.
	require.True(t, txn.Amount.IsZero())
	require.True(t, txn.Lines[0].Amount.IsZero())

	require.Equal(t, "22", txn.CheckNumber)
	require.Equal(t, "Check", txn.PaymentMethod)
	// Memo falls back to the doc number when there is no private note.
	require.Equal(t, "CHK-22", txn.Memo)
	// Counter-party falls back to the customer reference.
	require.Equal(t, "Maple Tenants LLC", txn.EntityName)
	require.Equal(t, "7", txn.EntityID)
}

func TestNormalizeMalformedRecord(t *testing.T) {
	_, err := normalizeTransaction(json.RawMessage(`{"Line": "not-a-list"`), KindPurchase)
	require.Error(t, err)
}

func TestLinesWithoutDetailTypeAreDropped(t *testing.T) {
	raw := json.RawMessage(`{
		"Id": "9",
		"TxnDate": "2024-05-05",
		"TotalAmt": 10,
		"Line": [
			{"Amount": 10, "Description": "subtotal row"},
			{"Amount": 10, "DetailType": "AccountBasedExpenseLineDetail",
			 "AccountBasedExpenseLineDetail": {"AccountRef": {"value": "1", "name": "A"}}}
		]
	}`)

	txn, err := normalizeTransaction(raw, KindPurchase)
	require.NoError(t, err)
	require.Len(t, txn.Lines, 1)
	require.Equal(t, "A", txn.Lines[0].AccountName)
}
