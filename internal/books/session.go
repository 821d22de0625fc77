// Package books is the QuickBooks Online integration layer: per-company
// authenticated sessions, query construction, transaction normalization,
// entity resolution, invoice assembly, and the multi-tenant report pool.
package books

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultBaseURL  = "https://quickbooks.api.intuit.com/v3/company"
	defaultTokenURL = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"

	defaultTimeout = 30 * time.Second
)

// Credentials identifies one tenant against the QuickBooks API.
type Credentials struct {
	Company      Company
	ClientID     string
	ClientSecret string
	RefreshToken string
	RealmID      string
}

// Options configures sessions, clients, and pools. The zero value targets
// the production Intuit endpoints with a 30s per-call timeout.
type Options struct {
	// BaseURL is the company API root (".../v3/company").
	BaseURL string
	// TokenURL is the OAuth token endpoint for the refresh grant.
	TokenURL string
	// HTTPClient overrides the default client. Its timeout applies per call.
	HTTPClient *http.Client
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
	// ItemNames overrides the default domain-name → QuickBooks-name table.
	ItemNames map[string]string
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	if o.TokenURL == "" {
		o.TokenURL = defaultTokenURL
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.ItemNames == nil {
		o.ItemNames = DefaultItemNames
	}
	return o
}

// Session holds one tenant's credentials and its current access token.
// The token is reused across calls until a request reports unauthorized;
// it is never proactively checked for expiry. Exactly one writer (refresh)
// updates it, and concurrent refreshes collapse into a single grant.
type Session struct {
	creds    Credentials
	tokenURL string
	http     *http.Client
	log      zerolog.Logger

	sf singleflight.Group

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewSession validates the credentials and obtains the initial access
// token via the refresh-token grant. A grant failure here is terminal:
// there is no prior token to fall back to.
func NewSession(ctx context.Context, creds Credentials, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	var missing []string
	for _, v := range []struct{ name, value string }{
		{string(creds.Company) + "_QB_CLIENT_ID", creds.ClientID},
		{string(creds.Company) + "_QB_CLIENT_SECRET", creds.ClientSecret},
		{string(creds.Company) + "_QB_REFRESH_TOKEN", creds.RefreshToken},
		{string(creds.Company) + "_QB_REALM_ID", creds.RealmID},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return nil, &CredentialsError{Company: creds.Company, Missing: missing}
	}

	s := &Session{
		creds:        creds,
		tokenURL:     opts.TokenURL,
		http:         opts.HTTPClient,
		log:          opts.Logger.With().Str("company", string(creds.Company)).Logger(),
		refreshToken: creds.RefreshToken,
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Company returns the tenant this session authenticates.
func (s *Session) Company() Company { return s.creds.Company }

// RealmID returns the company identifier sent on every API call.
func (s *Session) RealmID() string { return s.creds.RealmID }

// AccessToken returns the current bearer token.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers share one grant. Intuit rotates refresh tokens, so a new one in
// the response replaces the stored one for the rest of the process.
func (s *Session) Refresh(ctx context.Context) error {
	_, err, _ := s.sf.Do("refresh", func() (interface{}, error) {
		s.log.Info().Msg("refreshing access token")

		s.mu.Lock()
		refreshToken := s.refreshToken
		s.mu.Unlock()

		cfg := oauth2.Config{
			ClientID:     s.creds.ClientID,
			ClientSecret: s.creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  s.tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
		tctx := context.WithValue(ctx, oauth2.HTTPClient, s.http)
		tok, err := cfg.TokenSource(tctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			s.log.Error().Err(err).Msg("token refresh failed")
			return nil, s.classifyGrantError(err)
		}

		s.mu.Lock()
		s.accessToken = tok.AccessToken
		if tok.RefreshToken != "" {
			s.refreshToken = tok.RefreshToken
		}
		s.mu.Unlock()

		s.log.Info().Msg("access token refreshed")
		return nil, nil
	})
	return err
}

// classifyGrantError separates a dead refresh token (invalid_grant) from
// every other grant failure.
func (s *Session) classifyGrantError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == "invalid_grant" ||
			strings.Contains(strings.ToLower(string(re.Body)), "invalid_grant") {
			return &RefreshTokenExpiredError{Company: s.creds.Company, ClientID: s.creds.ClientID}
		}
	}
	return &AuthError{Company: s.creds.Company, Err: err}
}
