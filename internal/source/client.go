package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smukkama/drone-defense/internal/protocol"
)

// ErrUnexpectedStatus is wrapped by errors for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status from data source")

const maxErrorBody = 512

// Client talks to the drone data source over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL (e.g. http://localhost:8000). The
// timeout bounds each request; zero means 10s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the data source root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchHomeData performs GET /api/home-data.
func (c *Client) FetchHomeData(ctx context.Context) (*protocol.HomeData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/home-data", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build home-data request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	data, err := protocol.DecodeHomeData(body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// UpdateZones performs POST /api/update-zones with the provided zones.
func (c *Client) UpdateZones(ctx context.Context, update protocol.UpdateZonesRequest) (*protocol.UpdateZonesResponse, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal zone update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/update-zones", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build update-zones request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp protocol.UpdateZonesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode update-zones response: %w", err)
	}
	return &resp, nil
}

// FetchReport performs GET /api/report-data.
func (c *Client) FetchReport(ctx context.Context) (*protocol.ReportData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/report-data", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build report-data request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var report protocol.ReportData
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report-data response: %w", err)
	}
	return &report, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach data source: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: %s %s returned %d: %s",
			ErrUnexpectedStatus, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return body, nil
}
