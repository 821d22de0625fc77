// Package notify delivers tabular reports and error notices. The books
// layer only ever hands it a header plus string rows, or a plain error
// message.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Notifier renders and delivers report tables and error notices.
type Notifier interface {
	SendReport(ctx context.Context, subject string, header []string, rows [][]string) error
	SendError(ctx context.Context, subject, message string) error
}

// GraphConfig configures the Microsoft Graph channel notifier. BaseURL
// and TokenURL exist for tests; empty values target the public Graph
// endpoints.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	TeamID       string
	Channel      string

	BaseURL  string
	TokenURL string
}

// GraphNotifier posts messages into a Teams channel via Microsoft Graph,
// authenticating with the client-credentials grant. The token is cached
// until expiry; minting a replacement runs under the caller's context.
type GraphNotifier struct {
	cfg     GraphConfig
	baseURL string
	cc      clientcredentials.Config
	http    *http.Client
	log     zerolog.Logger

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewGraphNotifier builds a notifier for the configured team/channel.
func NewGraphNotifier(cfg GraphConfig, logger zerolog.Logger) *GraphNotifier {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}

	return &GraphNotifier{
		cfg:     cfg,
		baseURL: baseURL,
		cc: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		},
		http: &http.Client{Timeout: 30 * time.Second},
		log:  logger.With().Str("component", "notify").Logger(),
	}
}

// token returns the cached Graph token, minting a new one under ctx when
// the cached one is absent or expired.
func (n *GraphNotifier) token(ctx context.Context) (*oauth2.Token, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tok.Valid() {
		return n.tok, nil
	}
	tok, err := n.cc.Token(ctx)
	if err != nil {
		return nil, err
	}
	n.tok = tok
	return tok, nil
}

// SendReport posts the table as an HTML message to the channel.
func (n *GraphNotifier) SendReport(ctx context.Context, subject string, header []string, rows [][]string) error {
	body := fmt.Sprintf("<h3>%s</h3>%s", html.EscapeString(subject), renderTable(header, rows))
	return n.postMessage(ctx, body)
}

// SendError posts a plain error notice to the channel.
func (n *GraphNotifier) SendError(ctx context.Context, subject, message string) error {
	body := fmt.Sprintf("<h3>%s</h3><p>%s</p>", html.EscapeString(subject), html.EscapeString(message))
	return n.postMessage(ctx, body)
}

func (n *GraphNotifier) postMessage(ctx context.Context, content string) error {
	channelID, err := n.channelID(ctx)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"body": map[string]any{
			"contentType": "html",
			"content":     content,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/teams/%s/channels/%s/messages", n.baseURL, n.cfg.TeamID, channelID)
	status, body, err := n.do(ctx, http.MethodPost, url, data)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("post message failed (HTTP %d): %s", status, body)
	}
	n.log.Info().Str("channel", n.cfg.Channel).Msg("notification posted")
	return nil
}

// channelID resolves the configured channel's id by display name.
func (n *GraphNotifier) channelID(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/teams/%s/channels", n.baseURL, n.cfg.TeamID)
	status, body, err := n.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("list channels failed (HTTP %d): %s", status, body)
	}

	var resp struct {
		Value []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode channel list: %w", err)
	}
	for _, ch := range resp.Value {
		if strings.EqualFold(ch.DisplayName, n.cfg.Channel) {
			return ch.ID, nil
		}
	}
	return "", fmt.Errorf("channel %q not found", n.cfg.Channel)
}

func (n *GraphNotifier) do(ctx context.Context, method, url string, payload []byte) (int, []byte, error) {
	token, err := n.token(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("acquire Graph token: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build Graph request: %w", err)
	}
	token.SetAuthHeader(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read Graph response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// renderTable builds the HTML table for a report message.
func renderTable(header []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("<table border=\"1\"><thead><tr>")
	for _, h := range header {
		b.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}
