// Package clientapi is the HTTP SDK the sync engine and the CLI share to
// talk to the router's client channel.
package clientapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shoplist/internal/wire"
)

// Client talks to one router's client channel.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client against baseURL (e.g. "http://localhost:8080"),
// bounding every call at timeout (defaults to 5s, the receive timeout).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

// Do sends req to the router's client channel and returns its decoded
// response.
func (c *Client) Do(ctx context.Context, req wire.ClientRequest) (wire.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return wire.Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/client/request", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return wire.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return wire.Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded wire.Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return wire.Response{}, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

// CreateList sends a create_list request.
func (c *Client) CreateList(ctx context.Context, key, name, creator string) (wire.Response, error) {
	return c.Do(ctx, wire.ClientRequest{Action: "create_list", URL: key, Name: name, Creator: creator})
}

// DeleteList sends a delete_list request.
func (c *Client) DeleteList(ctx context.Context, key string) (wire.Response, error) {
	return c.Do(ctx, wire.ClientRequest{Action: "delete_list", ListURL: key})
}

// GetList sends a get_list request.
func (c *Client) GetList(ctx context.Context, key string) (wire.Response, error) {
	return c.Do(ctx, wire.ClientRequest{Action: "get_list", URL: key})
}
