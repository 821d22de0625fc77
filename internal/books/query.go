package books

import (
	"fmt"
	"strings"
)

// billableKinds are the item types that can appear on an invoice line,
// as opposed to category/group items.
const billableKinds = "('Service', 'Inventory', 'NonInventory')"

// escapeLiteral makes a value safe inside a single-quoted string literal
// of the QuickBooks query dialect by doubling embedded quotes.
func escapeLiteral(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// escapeLikeValue additionally strips wildcard characters so a
// caller-supplied name cannot widen a LIKE pattern.
func escapeLikeValue(v string) string {
	v = strings.ReplaceAll(v, "%", "")
	v = strings.ReplaceAll(v, "_", "")
	return escapeLiteral(v)
}

func transactionsByDateQuery(kind Kind, start, end string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE TxnDate >= '%s' AND TxnDate <= '%s'",
		kind, escapeLiteral(start), escapeLiteral(end))
}

func transactionByIDQuery(kind Kind, id string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE Id = '%s'", kind, escapeLiteral(id))
}

func customerByNameQuery(name string) string {
	return fmt.Sprintf("SELECT Id FROM Customer WHERE DisplayName = '%s'", escapeLiteral(name))
}

func itemByNameQuery(name string) string {
	return fmt.Sprintf("SELECT Id, Type FROM Item WHERE Name = '%s'", escapeLiteral(name))
}

func billableItemsLikeQuery(name string) string {
	return fmt.Sprintf("SELECT Id, Name, Type FROM Item WHERE Type IN %s AND Name LIKE '%%%s%%'",
		billableKinds, escapeLikeValue(name))
}

func billableItemsQuery() string {
	return fmt.Sprintf("SELECT Name, Type FROM Item WHERE Type IN %s", billableKinds)
}

func accountByNameQuery(name string) string {
	return fmt.Sprintf("SELECT Id FROM Account WHERE Name = '%s'", escapeLiteral(name))
}
