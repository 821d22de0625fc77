package books

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultItemNames translates line-item names used by the property
// management side into the names the QuickBooks item list actually
// carries. Unmapped names pass through unchanged.
var DefaultItemNames = map[string]string{
	"Management Fees":               "Management Fee",
	"4100 - Rent Income":            "Sales",
	"4440 - Application Fee Income": "Application Fee",
	"General Labor: General Labor":  "General Labor",
	"Placement Fees":                "Commission",
	"Commissions/Placement Fees":    "Commission",
	"4460 - Late Fee":               "Late Fee",
	"Supplies":                      "Sales",
	"6175 - Garbage and Recycling":  "Sales",
	"6040 - Pest Management":        "Pest Control Contractors",
	"6101 - Legal Fees":             "Legal Services",
	"6141 - Painting":               "Painting supplies",
	"2120 - Clearing Account":       "Sales",
}

// mapItemName applies the item-name translation table.
func (c *Client) mapItemName(name string) string {
	if mapped, ok := c.itemNames[name]; ok {
		return mapped
	}
	return name
}

type itemRecord struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Type string `json:"Type"`
}

func isBillableType(t string) bool {
	switch t {
	case "Service", "Inventory", "NonInventory":
		return true
	}
	return false
}

// ResolveCustomerID maps a customer display name to its QuickBooks id.
func (c *Client) ResolveCustomerID(ctx context.Context, name string) (string, error) {
	resp, err := c.Query(ctx, customerByNameQuery(name))
	if err != nil {
		return "", err
	}
	var customers []itemRecord
	if raw, ok := resp["Customer"]; ok {
		if err := json.Unmarshal(raw, &customers); err != nil {
			return "", fmt.Errorf("decode customer list: %w", err)
		}
	}
	if len(customers) == 0 {
		return "", &CustomerNotFoundError{Name: name}
	}
	return customers[0].ID, nil
}

// ResolveItemID maps a line-item name to a billable QuickBooks item id.
// The name goes through the translation table first; an exact match that
// turns out to be a category falls back to a contains search over
// billable items, picked deterministically (first by name, then id).
func (c *Client) ResolveItemID(ctx context.Context, name string) (string, error) {
	mapped := c.mapItemName(name)

	resp, err := c.Query(ctx, itemByNameQuery(mapped))
	if err != nil {
		return "", err
	}
	items, err := decodeItems(resp)
	if err != nil {
		return "", err
	}

	if len(items) > 0 {
		item := items[0]
		if isBillableType(item.Type) {
			return item.ID, nil
		}
		// The exact name is a category/group. Look for a billable item
		// containing the mapped name instead.
		resp, err := c.Query(ctx, billableItemsLikeQuery(mapped))
		if err != nil {
			return "", err
		}
		candidates, err := decodeItems(resp)
		if err != nil {
			return "", err
		}
		if len(candidates) > 0 {
			sort.Slice(candidates, func(i, j int) bool {
				if candidates[i].Name != candidates[j].Name {
					return candidates[i].Name < candidates[j].Name
				}
				return candidates[i].ID < candidates[j].ID
			})
			return candidates[0].ID, nil
		}
		return "", &AmbiguousItemError{Name: mapped}
	}

	// No exact match at all: enumerate what the company does have so the
	// failure names every usable item.
	resp, err = c.Query(ctx, billableItemsQuery())
	if err != nil {
		return "", err
	}
	available, err := decodeItems(resp)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(available))
	for _, it := range available {
		t := it.Type
		if t == "" {
			t = "Unknown"
		}
		names = append(names, fmt.Sprintf("%s (%s)", it.Name, t))
	}
	return "", &ItemNotFoundError{Name: mapped, Available: names}
}

// ResolveAccountID maps an account name to its QuickBooks id.
func (c *Client) ResolveAccountID(ctx context.Context, name string) (string, error) {
	resp, err := c.Query(ctx, accountByNameQuery(name))
	if err != nil {
		return "", err
	}
	var accounts []itemRecord
	if raw, ok := resp["Account"]; ok {
		if err := json.Unmarshal(raw, &accounts); err != nil {
			return "", fmt.Errorf("decode account list: %w", err)
		}
	}
	if len(accounts) == 0 {
		return "", &AccountNotFoundError{Name: name}
	}
	return accounts[0].ID, nil
}

func decodeItems(resp map[string]json.RawMessage) ([]itemRecord, error) {
	var items []itemRecord
	if raw, ok := resp["Item"]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode item list: %w", err)
		}
	}
	return items, nil
}
