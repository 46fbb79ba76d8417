// Package maps talks to the public mapping services: a Nominatim-compatible
// geocoder and an OSRM-compatible bicycle router.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
)

// UserAgent identifies the console to the public map services, which
// reject anonymous clients.
const UserAgent = "bikepilot/1.0 (+https://github.com/Auto-Bike/frontend)"

type httpJSON struct {
	baseURL string
	client  *http.Client
}

func newHTTPJSON(baseURL string, timeout time.Duration) httpJSON {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return httpJSON{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (h httpJSON) get(ctx context.Context, path string, query url.Values, out any) error {
	u := h.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 16<<10))
		return &client.APIError{Method: http.MethodGet, Path: path, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}
