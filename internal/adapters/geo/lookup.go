package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPLookup resolves IPs against an ip-api style JSON endpoint. Lookups are
// strictly best-effort: the login path treats every error here as "no
// location" and moves on.
type HTTPLookup struct {
	baseURL string
	client  *http.Client
}

func NewHTTPLookup(baseURL string, timeout time.Duration) *HTTPLookup {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPLookup{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (l *HTTPLookup) Locate(ctx context.Context, ip string) (string, error) {
	if l.baseURL == "" || ip == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+url.PathEscape(ip), nil)
	if err != nil {
		return "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo lookup status %d", resp.StatusCode)
	}

	var body struct {
		City    string `json:"city"`
		Region  string `json:"regionName"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{body.City, body.Region, body.Country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", "), nil
}

// NoopLookup disables geolocation while satisfying the port.
type NoopLookup struct{}

func (NoopLookup) Locate(context.Context, string) (string, error) { return "", nil }
