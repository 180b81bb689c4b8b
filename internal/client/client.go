// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tombee/lumen/internal/control"
	lumenerrors "github.com/tombee/lumen/pkg/errors"
)

// Client is a client for the lumend control API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a new daemon client with the given options.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: "http://localhost", // Host is ignored over a Unix socket
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		transport, err := DefaultTransport()
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		c.httpClient = &http.Client{Transport: transport}
	}

	return c, nil
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithTransport sets a custom transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Transport: transport}
		return nil
	}
}

// WithSocketPath connects to a daemon on a specific socket.
func WithSocketPath(socketPath string) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Transport: NewUnixTransport(socketPath)}
		return nil
	}
}

// Health returns the daemon health status.
func (c *Client) Health(ctx context.Context) (*control.HealthResponse, error) {
	var health control.HealthResponse
	if err := c.getJSON(ctx, "/v1/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Version returns the daemon version information.
func (c *Client) Version(ctx context.Context) (*control.VersionInfo, error) {
	var version control.VersionInfo
	if err := c.getJSON(ctx, "/v1/version", &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// Status returns the daemon state snapshot and module lifecycles.
func (c *Client) Status(ctx context.Context) (*control.StatusResponse, error) {
	var status control.StatusResponse
	if err := c.getJSON(ctx, "/v1/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// History returns recorded readings, newest first. An empty kind
// returns both ambient and backlight readings; limit zero uses the
// daemon default.
func (c *Client) History(ctx context.Context, kind string, limit int) (*control.HistoryResponse, error) {
	query := url.Values{}
	if kind != "" {
		query.Set("kind", kind)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/history"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history control.HistoryResponse
	if err := c.getJSON(ctx, path, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// SetBacklight asks the daemon to set the backlight level.
func (c *Client) SetBacklight(ctx context.Context, req control.BacklightRequest) error {
	return c.send(ctx, http.MethodPost, "/v1/backlight", req)
}

// Capture asks the daemon to run an ambient capture cycle now.
func (c *Client) Capture(ctx context.Context, req control.CaptureRequest) error {
	return c.send(ctx, http.MethodPost, "/v1/capture", req)
}

// SetTimeout changes one capture timeout entry.
func (c *Client) SetTimeout(ctx context.Context, req control.TimeoutRequest) error {
	return c.send(ctx, http.MethodPut, "/v1/timeouts", req)
}

// SetCurve replaces a calibration curve, or refits the stored one when
// the request carries no points.
func (c *Client) SetCurve(ctx context.Context, req control.CurveRequest) error {
	return c.send(ctx, http.MethodPut, "/v1/curve", req)
}

// SetAutocalib toggles automatic calibration.
func (c *Client) SetAutocalib(ctx context.Context, disabled bool) error {
	return c.send(ctx, http.MethodPut, "/v1/autocalib", control.AutocalibRequest{Disabled: disabled})
}

// SetDisplay reports the display dim state to the daemon.
func (c *Client) SetDisplay(ctx context.Context, dimmed bool) error {
	return c.send(ctx, http.MethodPost, "/v1/display", control.DisplayRequest{Dimmed: dimmed})
}

// Ping checks if the daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// getJSON performs a GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return responseError(path, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send performs a mutating request with a JSON body and discards the
// acknowledgement.
func (c *Client) send(ctx context.Context, method, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return responseError(path, resp)
	}
	return nil
}

// responseError turns an error response into a Go error, preferring the
// daemon's error message over the raw body. Rejected input and unknown
// endpoints map to the typed errors so callers can distinguish them
// from transport failures.
func responseError(path string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	msg := strings.TrimSpace(string(body))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &lumenerrors.ValidationError{Message: msg}
	case http.StatusNotFound:
		return &lumenerrors.NotFoundError{Resource: "endpoint", ID: path}
	}
	return fmt.Errorf("lumend returned error %d: %s", resp.StatusCode, msg)
}
