// Package config resolves runtime configuration from the environment.
// Entrypoints load a .env file first (godotenv); nothing in here carries
// compiled-in defaults for addresses, channels, or credentials.
package config

import (
	"fmt"
	"os"

	"propertyops/internal/books"
	"propertyops/internal/notify"
)

// TenantCredentials resolves one company's QuickBooks credentials from
// its {PREFIX}_QB_* environment variables. The returned error names
// every variable that was empty.
func TenantCredentials(company books.Company) (books.Credentials, error) {
	prefix := string(company)
	creds := books.Credentials{
		Company:      company,
		ClientID:     os.Getenv(prefix + "_QB_CLIENT_ID"),
		ClientSecret: os.Getenv(prefix + "_QB_CLIENT_SECRET"),
		RefreshToken: os.Getenv(prefix + "_QB_REFRESH_TOKEN"),
		RealmID:      os.Getenv(prefix + "_QB_REALM_ID"),
	}

	var missing []string
	for _, v := range []struct{ suffix, value string }{
		{"_QB_CLIENT_ID", creds.ClientID},
		{"_QB_CLIENT_SECRET", creds.ClientSecret},
		{"_QB_REFRESH_TOKEN", creds.RefreshToken},
		{"_QB_REALM_ID", creds.RealmID},
	} {
		if v.value == "" {
			missing = append(missing, prefix+v.suffix)
		}
	}
	if len(missing) > 0 {
		return books.Credentials{}, &books.CredentialsError{Company: company, Missing: missing}
	}
	return creds, nil
}

// WarehouseURL returns the warehouse Postgres connection string.
func WarehouseURL() (string, error) {
	url := os.Getenv("WAREHOUSE_DATABASE_URL")
	if url == "" {
		return "", fmt.Errorf("WAREHOUSE_DATABASE_URL environment variable not set")
	}
	return url, nil
}

// GraphSettings resolves the Microsoft Graph notifier configuration.
func GraphSettings() (notify.GraphConfig, error) {
	cfg := notify.GraphConfig{
		TenantID:     os.Getenv("MS_TENANT_ID"),
		ClientID:     os.Getenv("MS_CLIENT_ID"),
		ClientSecret: os.Getenv("MS_CLIENT_SECRET"),
		TeamID:       os.Getenv("MS_TEAM_ID"),
		Channel:      os.Getenv("MS_CHANNEL"),
	}

	var missing []string
	for _, v := range []struct{ name, value string }{
		{"MS_TENANT_ID", cfg.TenantID},
		{"MS_CLIENT_ID", cfg.ClientID},
		{"MS_CLIENT_SECRET", cfg.ClientSecret},
		{"MS_TEAM_ID", cfg.TeamID},
		{"MS_CHANNEL", cfg.Channel},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return notify.GraphConfig{}, fmt.Errorf("missing notifier settings: %v", missing)
	}
	return cfg, nil
}
