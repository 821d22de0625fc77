package books

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPropertyAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"management fees phrase", "12 Main St Management Fees March", "12 Main St"},
		{"hyphen fallback", "44 Oak Ave - repairs", "44 Oak Ave"},
		{"phrase wins over hyphen", "9 Elm-View Management Fees", "9 Elm-View"},
		{"neither", "Misc charge", "Misc charge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, propertyAddress(tt.in))
		})
	}
}

func TestSortLineRequestsByAddressThenDate(t *testing.T) {
	lines := []InvoiceLineRequest{
		{Description: "B St Management Fees", ServiceDate: "2024-02-01"},
		{Description: "A St Management Fees", ServiceDate: "2024-01-01"},
		{Description: "A St Management Fees", ServiceDate: "2024-03-01"},
	}

	sorted := sortLineRequests(lines)

	require.Equal(t, "2024-01-01", sorted[0].ServiceDate)
	require.Equal(t, "A St Management Fees", sorted[0].Description)
	require.Equal(t, "2024-03-01", sorted[1].ServiceDate)
	require.Equal(t, "A St Management Fees", sorted[1].Description)
	require.Equal(t, "2024-02-01", sorted[2].ServiceDate)
	require.Equal(t, "B St Management Fees", sorted[2].Description)

	// Input order is untouched.
	require.Equal(t, "B St Management Fees", lines[0].Description)
}

func TestSortFallsBackToInvoiceDate(t *testing.T) {
	lines := []InvoiceLineRequest{
		{Description: "A St - x", InvoiceDate: "2024-06-01"},
		{Description: "A St - x", ServiceDate: "2024-05-01"},
	}
	sorted := sortLineRequests(lines)
	require.Equal(t, "2024-05-01", lineDate(sorted[0]))
	require.Equal(t, "2024-06-01", lineDate(sorted[1]))
}

func TestGroupByCustomerPreservesSortOrder(t *testing.T) {
	sorted := []InvoiceLineRequest{
		{Customer: "Alpha", Description: "A St - fee"},
		{Customer: "Beta", Description: "B St - fee"},
		{Customer: "Alpha", Description: "C St - fee"},
	}

	groups := groupByCustomer(sorted)
	require.Len(t, groups, 2)
	require.Equal(t, "Alpha", groups[0].customer)
	require.Len(t, groups[0].lines, 2)
	require.Equal(t, "A St - fee", groups[0].lines[0].Description)
	require.Equal(t, "C St - fee", groups[0].lines[1].Description)
	require.Equal(t, "Beta", groups[1].customer)
	require.Len(t, groups[1].lines, 1)
}
