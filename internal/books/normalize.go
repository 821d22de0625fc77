package books

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is a supported QuickBooks transaction entity.
type Kind string

const (
	KindPurchase     Kind = "Purchase"
	KindBill         Kind = "Bill"
	KindExpense      Kind = "Expense"
	KindJournalEntry Kind = "JournalEntry"
)

// AllKinds returns every transaction kind the normalizer understands.
func AllKinds() []Kind {
	return []Kind{KindPurchase, KindBill, KindExpense, KindJournalEntry}
}

// LineItem is one normalized transaction line. The account reference is
// flattened out of whichever detail container the kind uses.
type LineItem struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name"`
	DetailType  string          `json:"detail_type"`
	LineNum     int             `json:"line_num"`
}

// Transaction is the unified representation of the four record kinds.
// The top-level account defaults to the first line's account, empty when
// there are no lines.
type Transaction struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"type"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Memo        string          `json:"memo"`
	EntityName  string          `json:"entity_name"`
	EntityID    string          `json:"entity_id"`
	DocNumber   string          `json:"doc_number"`
	PrivateNote string          `json:"private_note"`
	PaymentType string          `json:"payment_type"`
	SyncToken   string          `json:"sync_token"`
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name"`
	Lines       []LineItem      `json:"line_items"`

	CreateTime      string `json:"create_time"`
	LastUpdatedTime string `json:"last_updated_time"`

	// Purchase / Expense
	PaymentMethod string `json:"payment_method,omitempty"`
	// Purchase
	Credit   bool   `json:"credit,omitempty"`
	Currency string `json:"currency,omitempty"`
	// Bill
	DueDate string          `json:"due_date,omitempty"`
	Balance decimal.Decimal `json:"balance,omitempty"`
	Status  string          `json:"status,omitempty"`
	// Expense
	CheckNumber string `json:"check_number,omitempty"`
	// JournalEntry
	Adjustment bool `json:"adjustment,omitempty"`
}

// SkippedRecord describes one raw transaction that could not be
// normalized. Skips never fail the batch.
type SkippedRecord struct {
	ID     string
	Kind   Kind
	Reason string
}

type rawRef struct {
	Value string `json:"value"`
	Name  string `json:"name"`
}

// lenientNumber accepts any JSON token where a number is expected so a
// malformed amount degrades to zero instead of failing the record.
type lenientNumber string

func (n *lenientNumber) UnmarshalJSON(b []byte) error {
	*n = lenientNumber(strings.Trim(string(b), `"`))
	return nil
}

type rawDetail struct {
	AccountRef rawRef `json:"AccountRef"`
}

type rawLine struct {
	Amount      lenientNumber `json:"Amount"`
	Description string        `json:"Description"`
	DetailType  string        `json:"DetailType"`
	LineNum     lenientNumber `json:"LineNum"`

	AccountBasedExpenseLineDetail *rawDetail `json:"AccountBasedExpenseLineDetail"`
	SalesItemLineDetail           *rawDetail `json:"SalesItemLineDetail"`
	JournalEntryLineDetail        *rawDetail `json:"JournalEntryLineDetail"`
}

type rawTransaction struct {
	ID               string        `json:"Id"`
	TxnDate          string        `json:"TxnDate"`
	TotalAmt         lenientNumber `json:"TotalAmt"`
	PrivateNote      string        `json:"PrivateNote"`
	DocNumber        string        `json:"DocNumber"`
	PaymentType      string        `json:"PaymentType"`
	SyncToken        string        `json:"SyncToken"`
	VendorRef        *rawRef       `json:"VendorRef"`
	CustomerRef      *rawRef       `json:"CustomerRef"`
	PaymentMethodRef *rawRef       `json:"PaymentMethodRef"`
	CurrencyRef      *rawRef       `json:"CurrencyRef"`
	Credit           bool          `json:"Credit"`
	DueDate          string        `json:"DueDate"`
	Balance          lenientNumber `json:"Balance"`
	Status           string        `json:"Status"`
	CheckNum         string        `json:"CheckNum"`
	Adjustment       bool          `json:"Adjustment"`
	Line             []rawLine     `json:"Line"`
	MetaData         struct {
		CreateTime      string `json:"CreateTime"`
		LastUpdatedTime string `json:"LastUpdatedTime"`
	} `json:"MetaData"`
}

// numOrZero parses a wire number, defaulting to zero when the field is
// absent or unparsable rather than failing the record.
func numOrZero(n lenientNumber) decimal.Decimal {
	if n == "" || n == "null" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func intOrZero(n lenientNumber) int {
	i, err := strconv.Atoi(string(n))
	if err != nil {
		return 0
	}
	return i
}

// lineAccountRef dispatches on the detail-type tag to the container that
// carries the account reference for this kind of line.
func lineAccountRef(l rawLine) rawRef {
	switch l.DetailType {
	case "AccountBasedExpenseLineDetail":
		if l.AccountBasedExpenseLineDetail != nil {
			return l.AccountBasedExpenseLineDetail.AccountRef
		}
	case "SalesItemLineDetail":
		if l.SalesItemLineDetail != nil {
			return l.SalesItemLineDetail.AccountRef
		}
	case "JournalEntryLineDetail":
		if l.JournalEntryLineDetail != nil {
			return l.JournalEntryLineDetail.AccountRef
		}
	}
	return rawRef{}
}

// normalizeTransaction converts one raw payload of the declared kind into
// the unified representation.
func normalizeTransaction(data json.RawMessage, kind Kind) (Transaction, error) {
	var raw rawTransaction
	if err := json.Unmarshal(data, &raw); err != nil {
		return Transaction{}, fmt.Errorf("decode %s record: %w", kind, err)
	}

	txn := Transaction{
		ID:              raw.ID,
		Kind:            kind,
		Date:            raw.TxnDate,
		Amount:          numOrZero(raw.TotalAmt),
		PrivateNote:     raw.PrivateNote,
		DocNumber:       raw.DocNumber,
		PaymentType:     raw.PaymentType,
		SyncToken:       raw.SyncToken,
		CreateTime:      raw.MetaData.CreateTime,
		LastUpdatedTime: raw.MetaData.LastUpdatedTime,
	}

	txn.Memo = raw.PrivateNote
	if txn.Memo == "" {
		txn.Memo = raw.DocNumber
	}

	switch {
	case raw.VendorRef != nil && raw.VendorRef.Name != "":
		txn.EntityName, txn.EntityID = raw.VendorRef.Name, raw.VendorRef.Value
	case raw.CustomerRef != nil:
		txn.EntityName, txn.EntityID = raw.CustomerRef.Name, raw.CustomerRef.Value
	case raw.VendorRef != nil:
		txn.EntityID = raw.VendorRef.Value
	}

	for _, l := range raw.Line {
		if l.DetailType == "" {
			continue
		}
		ref := lineAccountRef(l)
		txn.Lines = append(txn.Lines, LineItem{
			Amount:      numOrZero(l.Amount),
			Description: l.Description,
			AccountID:   ref.Value,
			AccountName: ref.Name,
			DetailType:  l.DetailType,
			LineNum:     intOrZero(l.LineNum),
		})
	}
	if len(txn.Lines) > 0 {
		txn.AccountID = txn.Lines[0].AccountID
		txn.AccountName = txn.Lines[0].AccountName
	}

	switch kind {
	case KindPurchase:
		if raw.PaymentMethodRef != nil {
			txn.PaymentMethod = raw.PaymentMethodRef.Name
		}
		txn.Credit = raw.Credit
		txn.Currency = "USD"
		if raw.CurrencyRef != nil && raw.CurrencyRef.Name != "" {
			txn.Currency = raw.CurrencyRef.Name
		}
	case KindBill:
		txn.DueDate = raw.DueDate
		txn.Balance = numOrZero(raw.Balance)
		txn.Status = raw.Status
	case KindExpense:
		if raw.PaymentMethodRef != nil {
			txn.PaymentMethod = raw.PaymentMethodRef.Name
		}
		txn.CheckNumber = raw.CheckNum
	case KindJournalEntry:
		txn.Adjustment = raw.Adjustment
	}

	return txn, nil
}

// TransactionQuery bounds a transaction pull. Zero dates default to the
// trailing 100 days; empty Kinds means all kinds; an empty FilterAccount
// returns every normalized transaction.
type TransactionQuery struct {
	Start time.Time
	End   time.Time
	Kinds []Kind
	// FilterAccount keeps only transactions with at least one line posted
	// to the named account.
	FilterAccount string
}

// Transactions pulls and normalizes the tenant's transactions, newest
// first. Malformed records are returned as skips alongside the good ones.
// Authentication failures abort the pull; a request failure for one kind
// is recorded and the remaining kinds are still queried.
func (c *Client) Transactions(ctx context.Context, q TransactionQuery) ([]Transaction, []SkippedRecord, error) {
	end := q.End
	if end.IsZero() {
		end = NowFunc()
	}
	start := q.Start
	if start.IsZero() {
		start = end.AddDate(0, 0, -100)
	}
	kinds := q.Kinds
	if len(kinds) == 0 {
		kinds = AllKinds()
	}

	var (
		txns    []Transaction
		skipped []SkippedRecord
	)
	for _, kind := range kinds {
		resp, err := c.Query(ctx, transactionsByDateQuery(kind,
			start.Format("2006-01-02"), end.Format("2006-01-02")))
		if err != nil {
			if isAuthFailure(err) {
				return nil, nil, err
			}
			c.log.Error().Err(err).Str("kind", string(kind)).Msg("transaction query failed")
			skipped = append(skipped, SkippedRecord{Kind: kind, Reason: err.Error()})
			continue
		}

		var records []json.RawMessage
		if raw, ok := resp[string(kind)]; ok {
			if err := json.Unmarshal(raw, &records); err != nil {
				skipped = append(skipped, SkippedRecord{Kind: kind, Reason: fmt.Sprintf("decode %s list: %v", kind, err)})
				continue
			}
		}
		c.log.Info().Str("kind", string(kind)).Int("count", len(records)).Msg("fetched transactions")

		for _, rec := range records {
			txn, err := normalizeTransaction(rec, kind)
			if err != nil {
				skipped = append(skipped, SkippedRecord{ID: recordID(rec), Kind: kind, Reason: err.Error()})
				continue
			}
			if q.FilterAccount != "" && !txn.hasAccount(q.FilterAccount) {
				continue
			}
			txns = append(txns, txn)
		}
	}

	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Date > txns[j].Date })
	return txns, skipped, nil
}

func (t Transaction) hasAccount(name string) bool {
	for _, l := range t.Lines {
		if l.AccountName == name {
			return true
		}
	}
	return false
}

// recordID best-effort extracts the Id of an undecodable record for the
// skip report.
func recordID(rec json.RawMessage) string {
	var probe struct {
		ID string `json:"Id"`
	}
	if err := json.Unmarshal(rec, &probe); err != nil {
		return ""
	}
	return probe.ID
}

// isAuthFailure reports whether err is tenant-scoped and should stop the
// whole pull instead of one kind.
func isAuthFailure(err error) bool {
	var ae *AuthError
	var re *RefreshTokenExpiredError
	return errors.As(err, &ae) || errors.As(err, &re)
}
