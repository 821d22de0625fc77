package books

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// minorVersion is pinned on every API call.
const minorVersion = "75"

// NowFunc returns the current time. It can be overridden in tests.
var NowFunc = time.Now

// Client executes requests against the QuickBooks API for one tenant.
// On an unauthorized response it refreshes the session token exactly once
// and retries the identical call; a second unauthorized response is
// terminal.
type Client struct {
	session   *Session
	baseURL   string
	http      *http.Client
	log       zerolog.Logger
	itemNames map[string]string

	// submitMu serializes invoice submission: document numbers are minted
	// from wall-clock seconds and must not collide within a tenant.
	submitMu sync.Mutex
}

// NewClient wraps a session. Options should match the ones the session
// was built with.
func NewClient(session *Session, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		session:   session,
		baseURL:   opts.BaseURL,
		http:      opts.HTTPClient,
		log:       opts.Logger.With().Str("company", string(session.Company())).Logger(),
		itemNames: opts.ItemNames,
	}
}

// Company returns the tenant this client serves.
func (c *Client) Company() Company { return c.session.Company() }

// Do issues one API call and returns the raw JSON response body.
// The minorversion parameter and bearer credential are attached to every
// request. body, when non-nil, is marshaled once so the 401 retry resends
// identical bytes.
func (c *Client) Do(ctx context.Context, method, endpoint string, params url.Values, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", endpoint, err)
		}
	}

	status, raw, err := c.attempt(ctx, method, endpoint, params, payload)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		c.log.Warn().Str("endpoint", endpoint).Msg("received 401, refreshing access token and retrying")
		if err := c.session.Refresh(ctx); err != nil {
			return nil, err
		}
		status, raw, err = c.attempt(ctx, method, endpoint, params, payload)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			c.log.Error().Str("endpoint", endpoint).Msg("still unauthorized after token refresh")
			return nil, &AuthError{Company: c.Company()}
		}
	}

	if status >= 400 {
		return nil, newRequestError(status, raw)
	}
	return raw, nil
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, params url.Values, payload []byte) (int, []byte, error) {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("minorversion", minorVersion)

	u := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.session.RealmID(), endpoint, q.Encode())

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().Str("method", method).Str("endpoint", endpoint).Msg("calling QuickBooks API")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode >= 400 {
		c.log.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("QuickBooks API error response")
	}
	return resp.StatusCode, raw, nil
}

// fault mirrors the error envelope QuickBooks puts on failed calls.
type fault struct {
	Fault struct {
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
		} `json:"Error"`
	} `json:"Fault"`
}

func newRequestError(status int, body []byte) *RequestError {
	e := &RequestError{Status: status, Body: string(body)}
	var f fault
	if err := json.Unmarshal(body, &f); err == nil && len(f.Fault.Error) > 0 {
		e.Message = f.Fault.Error[0].Message
		e.Detail = f.Fault.Error[0].Detail
	}
	return e
}

// Query runs one SQL-like read query and returns the QueryResponse
// object keyed by entity name.
func (c *Client) Query(ctx context.Context, query string) (map[string]json.RawMessage, error) {
	c.log.Debug().Str("query", query).Msg("running query")
	raw, err := c.Do(ctx, http.MethodGet, "query", url.Values{"query": {query}}, nil)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		QueryResponse map[string]json.RawMessage `json:"QueryResponse"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return envelope.QueryResponse, nil
}

// Ping verifies the connection with a companyinfo call and returns the
// company's display name.
func (c *Client) Ping(ctx context.Context) (string, error) {
	raw, err := c.Do(ctx, http.MethodGet, "companyinfo/"+c.session.RealmID(), nil, nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		CompanyInfo struct {
			CompanyName string `json:"CompanyName"`
		} `json:"CompanyInfo"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode companyinfo response: %w", err)
	}
	if resp.CompanyInfo.CompanyName == "" {
		return "", fmt.Errorf("unexpected companyinfo response: %s", string(raw))
	}
	return resp.CompanyInfo.CompanyName, nil
}
