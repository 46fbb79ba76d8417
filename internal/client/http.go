package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient makes REST calls to the bike backend.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://3.15.51.67").
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend root the client talks to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// SendCommand sends POST /send-command.
func (c *HTTPClient) SendCommand(ctx context.Context, req CommandRequest) (CommandResponse, error) {
	var out CommandResponse
	if err := c.post(ctx, "/send-command", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TestConnection fetches /test-bike-connection/{id}.
func (c *HTTPClient) TestConnection(ctx context.Context, bikeID string) (*ConnectionResponse, error) {
	var out ConnectionResponse
	if err := c.get(ctx, "/test-bike-connection/"+url.PathEscape(bikeID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LatestGPS fetches /latest-gps/{id}.
func (c *HTTPClient) LatestGPS(ctx context.Context, bikeID string) (*GPSFix, error) {
	var out GPSFix
	if err := c.get(ctx, "/latest-gps/"+url.PathEscape(bikeID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendNavigation sends POST /send-navigation. The response body is ignored.
func (c *HTTPClient) SendNavigation(ctx context.Context, req NavigationRequest) error {
	return c.post(ctx, "/send-navigation", req, nil)
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(http.MethodGet, path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(http.MethodPost, path, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("POST %s: decoding response: %w", path, err)
		}
	}
	return nil
}

// apiError reads the error body. A JSON {"detail": ...} is surfaced as is;
// anything else falls back to the raw body text.
func apiError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e := &APIError{Method: method, Path: path, Status: resp.StatusCode}
	var body ErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Detail != "" {
		e.Detail = body.Detail
	} else if s := strings.TrimSpace(string(raw)); s != "" {
		e.Detail = fmt.Sprintf("%s %s: %d %s", method, path, resp.StatusCode, s)
	}
	return e
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
