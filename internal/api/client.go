package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shottracker/shottracker/pkg/core"
)

// ErrRifleNotFound is returned by GetRifle when the server answers 404.
var ErrRifleNotFound = errors.New("rifle not found")

// StatusError is returned for unexpected response codes. Detail carries the
// server's {"detail": ...} message when present.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the ballistics service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Healthcheck checks if the service is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &body, http.StatusOK); err != nil {
		return fmt.Errorf("healthcheck: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("healthcheck: unexpected status %q", body.Status)
	}
	return nil
}

// ListRifles returns all stored rifle profiles.
func (c *Client) ListRifles(ctx context.Context) ([]core.Rifle, error) {
	var rifles []core.Rifle
	if err := c.do(ctx, http.MethodGet, "/rifles", nil, &rifles, http.StatusOK); err != nil {
		return nil, fmt.Errorf("list rifles: %w", err)
	}
	return rifles, nil
}

// GetRifle fetches one rifle profile.
func (c *Client) GetRifle(ctx context.Context, id string) (core.Rifle, error) {
	var r core.Rifle
	err := c.do(ctx, http.MethodGet, "/rifles/"+url.PathEscape(id), nil, &r, http.StatusOK)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return core.Rifle{}, ErrRifleNotFound
	}
	if err != nil {
		return core.Rifle{}, fmt.Errorf("get rifle: %w", err)
	}
	return r, nil
}

// CreateRifle stores a new rifle profile and returns it with its ID.
func (c *Client) CreateRifle(ctx context.Context, p core.RifleProfile) (core.Rifle, error) {
	var r core.Rifle
	if err := c.do(ctx, http.MethodPost, "/rifles", p, &r, http.StatusCreated, http.StatusOK); err != nil {
		return core.Rifle{}, fmt.Errorf("create rifle: %w", err)
	}
	return r, nil
}

// Calculate asks the service for drop and drift.
func (c *Client) Calculate(ctx context.Context, req core.ShotRequest) (core.ShotResult, error) {
	var res core.ShotResult
	if err := c.do(ctx, http.MethodPost, "/calculate", req, &res, http.StatusOK); err != nil {
		return core.ShotResult{}, fmt.Errorf("calculate: %w", err)
	}
	return res, nil
}

// RecentShots returns up to limit recorded shots, newest first.
func (c *Client) RecentShots(ctx context.Context, limit int) ([]core.ShotRecord, error) {
	path := "/shots"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var shots []core.ShotRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &shots, http.StatusOK); err != nil {
		return nil, fmt.Errorf("recent shots: %w", err)
	}
	return shots, nil
}

// do sends a JSON request and decodes a JSON response when the status is one
// of want.
func (c *Client) do(ctx context.Context, method, path string, in, out any, want ...int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := false
	for _, code := range want {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		return statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &detail) == nil {
		se.Detail = detail.Detail
	}
	return se
}
