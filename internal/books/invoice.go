package books

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// InvoiceLineRequest is one caller-supplied billing line, tagged with the
// customer it belongs to. Dates are YYYY-MM-DD. Quantity and Rate are
// optional; a missing rate falls back to the line amount.
type InvoiceLineRequest struct {
	Customer    string           `json:"Customer"`
	Item        string           `json:"Item"`
	Description string           `json:"Description"`
	Quantity    *decimal.Decimal `json:"Quantity"`
	Rate        *decimal.Decimal `json:"Rate"`
	Amount      decimal.Decimal  `json:"Amount"`
	ServiceDate string           `json:"ServiceDate"`
	InvoiceDate string           `json:"InvoiceDate"`
	DueDate     string           `json:"DueDate"`
}

// Invoice is one successfully created invoice document.
type Invoice struct {
	ID        string
	DocNumber string
	Customer  string
	URL       string
}

// SubmissionResult reports a batch submission: one invoice per customer
// that succeeded, one SubmissionError per customer that did not.
type SubmissionResult struct {
	Invoices []Invoice
	Failures []*SubmissionError
}

// propertyAddress extracts the sort token from a line description: the
// text preceding "Management Fees", or preceding the first hyphen when
// that phrase is absent.
func propertyAddress(description string) string {
	if idx := strings.Index(description, "Management Fees"); idx >= 0 {
		return strings.TrimSpace(description[:idx])
	}
	if idx := strings.Index(description, "-"); idx >= 0 {
		return strings.TrimSpace(description[:idx])
	}
	return strings.TrimSpace(description)
}

func lineDate(l InvoiceLineRequest) string {
	if l.ServiceDate != "" {
		return l.ServiceDate
	}
	return l.InvoiceDate
}

// sortLineRequests orders lines by property address, then service date
// (invoice date when the service date is absent). The sort is stable so
// equal lines keep their input order.
func sortLineRequests(lines []InvoiceLineRequest) []InvoiceLineRequest {
	sorted := make([]InvoiceLineRequest, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := propertyAddress(sorted[i].Description), propertyAddress(sorted[j].Description)
		if ai != aj {
			return ai < aj
		}
		return lineDate(sorted[i]) < lineDate(sorted[j])
	})
	return sorted
}

type customerGroup struct {
	customer string
	lines    []InvoiceLineRequest
}

// groupByCustomer partitions sorted lines by customer name, groups
// ordered by first appearance, line order within a group preserved from
// the global sort.
func groupByCustomer(sorted []InvoiceLineRequest) []customerGroup {
	index := map[string]int{}
	var groups []customerGroup
	for _, l := range sorted {
		i, ok := index[l.Customer]
		if !ok {
			i = len(groups)
			index[l.Customer] = i
			groups = append(groups, customerGroup{customer: l.Customer})
		}
		groups[i].lines = append(groups[i].lines, l)
	}
	return groups
}

type invoiceRef struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type salesItemLineDetail struct {
	ItemRef     invoiceRef `json:"ItemRef"`
	Qty         string     `json:"Qty"`
	UnitPrice   string     `json:"UnitPrice"`
	ServiceDate string     `json:"ServiceDate,omitempty"`
}

type invoiceLine struct {
	DetailType          string              `json:"DetailType"`
	Amount              string              `json:"Amount"`
	Description         string              `json:"Description"`
	SalesItemLineDetail salesItemLineDetail `json:"SalesItemLineDetail"`
}

type invoicePayload struct {
	Line                 []invoiceLine `json:"Line"`
	CustomerRef          invoiceRef    `json:"CustomerRef"`
	TxnDate              string        `json:"TxnDate"`
	DueDate              string        `json:"DueDate,omitempty"`
	PrivateNote          string        `json:"PrivateNote"`
	DocNumber            string        `json:"DocNumber"`
	GlobalTaxCalculation string        `json:"GlobalTaxCalculation"`
	CurrencyRef          invoiceRef    `json:"CurrencyRef"`
}

// CreateInvoices groups the given lines by customer and submits one
// invoice document per customer. A failure for one customer is recorded
// and the remaining customers are still attempted; nothing is rolled
// back. Submission is serialized per client so document numbers minted
// from wall-clock seconds cannot collide within a tenant.
func (c *Client) CreateInvoices(ctx context.Context, lines []InvoiceLineRequest) (*SubmissionResult, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("no lines provided for invoice creation")
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	result := &SubmissionResult{}
	for _, group := range groupByCustomer(sortLineRequests(lines)) {
		inv, err := c.submitCustomerInvoice(ctx, group)
		if err != nil {
			c.log.Error().Err(err).Str("customer", group.customer).Msg("invoice submission failed")
			result.Failures = append(result.Failures, &SubmissionError{Customer: group.customer, Err: err})
			continue
		}
		c.log.Info().Str("customer", group.customer).Str("doc_number", inv.DocNumber).Msg("invoice created")
		result.Invoices = append(result.Invoices, *inv)
	}
	return result, nil
}

func (c *Client) submitCustomerInvoice(ctx context.Context, group customerGroup) (*Invoice, error) {
	customerID, err := c.ResolveCustomerID(ctx, group.customer)
	if err != nil {
		return nil, err
	}

	payloadLines := make([]invoiceLine, 0, len(group.lines))
	for _, l := range group.lines {
		mapped := c.mapItemName(l.Item)
		itemID, err := c.ResolveItemID(ctx, l.Item)
		if err != nil {
			return nil, err
		}

		// Management fees bill as a single unit at the line amount; other
		// items use the supplied quantity and rate, falling back to the
		// amount when the rate is absent.
		var qty, unitPrice string
		if strings.Contains(mapped, "Management Fee") {
			qty = "1"
			unitPrice = l.Amount.String()
		} else {
			qty = "1"
			if l.Quantity != nil {
				qty = l.Quantity.String()
			}
			if l.Rate != nil {
				unitPrice = l.Rate.String()
			} else {
				unitPrice = l.Amount.String()
			}
		}

		payloadLines = append(payloadLines, invoiceLine{
			DetailType:  "SalesItemLineDetail",
			Amount:      l.Amount.String(),
			Description: l.Description,
			SalesItemLineDetail: salesItemLineDetail{
				ItemRef:     invoiceRef{Value: itemID, Name: mapped},
				Qty:         qty,
				UnitPrice:   unitPrice,
				ServiceDate: lineDate(l),
			},
		})
	}

	now := NowFunc()
	payload := invoicePayload{
		Line:        payloadLines,
		CustomerRef: invoiceRef{Value: customerID, Name: group.customer},
		TxnDate:     now.Format("2006-01-02"),
		DueDate:     group.lines[0].DueDate,
		PrivateNote: fmt.Sprintf("Created via BuildingBlocks on %s for service period %s",
			now.Format("2006-01-02"), group.lines[0].InvoiceDate),
		DocNumber:            "BB-" + now.Format("20060102-150405"),
		GlobalTaxCalculation: "NotApplicable",
		CurrencyRef:          invoiceRef{Value: "USD", Name: "United States Dollar"},
	}

	raw, err := c.Do(ctx, http.MethodPost, "invoice", nil, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Invoice struct {
			ID        string `json:"Id"`
			DocNumber string `json:"DocNumber"`
		} `json:"Invoice"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode invoice response: %w", err)
	}
	if resp.Invoice.ID == "" {
		return nil, fmt.Errorf("unexpected invoice response: %s", string(raw))
	}

	return &Invoice{
		ID:        resp.Invoice.ID,
		DocNumber: resp.Invoice.DocNumber,
		Customer:  group.customer,
		URL:       "https://qbo.intuit.com/app/invoice?txnId=" + resp.Invoice.ID,
	}, nil
}
