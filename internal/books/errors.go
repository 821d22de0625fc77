package books

import (
	"fmt"
	"strings"
)

// PlaygroundURL is where an operator re-authorizes a company whose
// refresh token has expired.
const PlaygroundURL = "https://developer.intuit.com/app/developer/playground"

// CredentialsError reports tenant configuration that cannot produce a
// session. Missing lists the exact environment variables that were empty.
type CredentialsError struct {
	Company Company
	Missing []string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("missing QuickBooks credentials for %s: %s",
		e.Company, strings.Join(e.Missing, ", "))
}

// AuthError means authentication failed even after a token refresh, or the
// initial token grant failed for a reason other than an expired refresh
// token. Recovering requires operator action, not another retry.
type AuthError struct {
	Company Company
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: authentication failed even after token refresh: %v", e.Company, e.Err)
	}
	return fmt.Sprintf("%s: authentication failed even after token refresh", e.Company)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RefreshTokenExpiredError means the long-lived refresh token itself is
// dead (the token endpoint answered invalid_grant). The access token
// cannot be re-minted; the company has to be re-authorized by hand.
type RefreshTokenExpiredError struct {
	Company  Company
	ClientID string
}

func (e *RefreshTokenExpiredError) Error() string {
	return fmt.Sprintf(
		"QuickBooks refresh token has expired for %s. "+
			"Re-authorize at %s using client id %s, then update %s_QB_REFRESH_TOKEN",
		e.Company, PlaygroundURL, e.ClientID, e.Company)
}

// RequestError is any non-2xx API response that is not an authentication
// failure. Message and Detail are filled from the response Fault block
// when one is present.
type RequestError struct {
	Status  int
	Message string
	Detail  string
	Body    string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		if e.Detail != "" {
			return fmt.Sprintf("QuickBooks API error (HTTP %d): %s. %s", e.Status, e.Message, e.Detail)
		}
		return fmt.Sprintf("QuickBooks API error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("QuickBooks API error (HTTP %d): %s", e.Status, e.Body)
}

// CustomerNotFoundError aborts a single customer's invoice.
type CustomerNotFoundError struct {
	Name string
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("customer %q not found in QuickBooks", e.Name)
}

// ItemNotFoundError carries every billable item the company does have so
// the operator can fix the source data without another round trip.
type ItemNotFoundError struct {
	Name      string
	Available []string
}

func (e *ItemNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("item %q not found in QuickBooks", e.Name)
	}
	return fmt.Sprintf("item %q not found in QuickBooks; available items are: %s",
		e.Name, strings.Join(e.Available, ", "))
}

// AmbiguousItemError means the name matched a category (non-billable)
// item and no billable item contains the name either.
type AmbiguousItemError struct {
	Name string
}

func (e *AmbiguousItemError) Error() string {
	return fmt.Sprintf("item %q is set up as a category in QuickBooks; "+
		"create it as a Service, Inventory, or NonInventory item", e.Name)
}

// AccountNotFoundError reports a category name with no matching account.
type AccountNotFoundError struct {
	Name string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account for category %q not found", e.Name)
}

// SubmissionError scopes a failure to one customer's invoice document.
// Sibling customers in the same submission are unaffected.
type SubmissionError struct {
	Customer string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("invoice for %q: %v", e.Customer, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
