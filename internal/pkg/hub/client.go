package hub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mybizz/mybizz/internal/pkg/vault"
)

const (
	DefaultTimeout = 30 * time.Second

	apiPrefix       = "/_/api/"
	payloadPath     = apiPrefix + "get_payload/"
	maxResponseBody = 10 << 20
	maxErrorBody    = 512
)

// ErrNotConfigured is returned when a hub endpoint, tenant id or API key
// is missing from the vault.
var ErrNotConfigured = errors.New("hub: forwarding is not configured")

// StatusError is a non-2xx answer from the hub.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("hub responded with HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("hub responded with HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the hub may accept the same request later.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Config is the tenant-scoped hub connection.
type Config struct {
	Endpoint string
	TenantID string
	APIKey   string
}

// LoadConfig resolves the hub settings. Any missing value fails the whole
// lookup so no request is ever sent half-authenticated.
func LoadConfig(ctx context.Context, secrets vault.Provider) (Config, error) {
	var cfg Config
	var missing []string
	for _, f := range []struct {
		key string
		dst *string
	}{
		{vault.KeyHubAPIEndpoint, &cfg.Endpoint},
		{vault.KeyHubTenantID, &cfg.TenantID},
		{vault.KeyHubAPIKey, &cfg.APIKey},
	} {
		v, err := secrets.GetSecret(ctx, f.key)
		switch {
		case errors.Is(err, vault.ErrSecretNotFound):
			missing = append(missing, f.key)
		case err != nil:
			return Config{}, fmt.Errorf("read %s: %w", f.key, err)
		default:
			*f.dst = strings.TrimSpace(v)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	if _, err := payloadURL(cfg.Endpoint, "x"); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return cfg, nil
}

// Client talks to the hub's log-payload API.
type Client struct {
	secrets vault.Provider
	http    *http.Client
}

// NewClient creates a hub client. A non-positive timeout uses DefaultTimeout.
func NewClient(secrets vault.Provider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		secrets: secrets,
		http:    &http.Client{Timeout: timeout},
	}
}

// Forward POSTs the raw webhook body to the hub endpoint and returns a short
// description of the hub's answer.
func (c *Client) Forward(ctx context.Context, eventID string, raw []byte) (string, error) {
	cfg, err := LoadConfig(ctx, c.secrets)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build hub request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, cfg)

	log.Debugf("[Hub] Forwarding event %s (%d bytes)", eventID, len(raw))
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post to hub: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	return fmt.Sprintf("hub accepted event %s (HTTP %d)", eventID, resp.StatusCode), nil
}

// Retrieve GETs a previously forwarded raw payload by event id.
func (c *Client) Retrieve(ctx context.Context, eventID string) ([]byte, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, errors.New("event id is required")
	}
	cfg, err := LoadConfig(ctx, c.secrets)
	if err != nil {
		return nil, err
	}
	target, err := payloadURL(cfg.Endpoint, eventID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build hub request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	setAuth(req, cfg)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get payload from hub: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read hub payload: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("hub returned an empty payload for %s", eventID)
	}
	return body, nil
}

// readErrorBody reads a capped, printable excerpt of a hub error response.
func readErrorBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if len(body) == maxErrorBody {
		// the cap may have cut the last rune
		for i := 1; i <= utf8.UTFMax && i <= len(body); i++ {
			if utf8.RuneStart(body[len(body)-i]) {
				if !utf8.FullRune(body[len(body)-i:]) {
					body = body[:len(body)-i]
				}
				break
			}
		}
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(body), "\uFFFD"))
}

func setAuth(req *http.Request, cfg Config) {
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("X-Tenant-ID", cfg.TenantID)
}

// payloadURL builds <base>/_/api/get_payload/<event_id>. The base is the
// configured endpoint without query, and without a trailing /_/api/<route>
// segment when the endpoint names the hub's log route directly.
func payloadURL(endpoint, eventID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid hub endpoint %q", endpoint)
	}
	base := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(base, apiPrefix); i >= 0 && !strings.Contains(base[i+len(apiPrefix):], "/") {
		base = base[:i]
	}
	return u.Scheme + "://" + u.Host + base + payloadPath + url.PathEscape(eventID), nil
}
