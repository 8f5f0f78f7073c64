// Package client talks to a routerd inspector API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	api "slotrouter/internal/http"
	"slotrouter/pkg/cluster"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("routerd: %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s do: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(b))}
		var r api.Response
		if json.Unmarshal(b, &r) == nil && r.Error != "" {
			apiErr.Message = r.Error
		}
		if resp.StatusCode == http.StatusUnprocessableEntity {
			return fmt.Errorf("%w: %w", cluster.ErrUnroutable, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s body: %w", method, err)
	}
	return nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Slot(ctx context.Context, key string) (api.SlotResponse, error) {
	var out api.SlotResponse
	err := c.do(ctx, http.MethodGet, "/api/slot?key="+url.QueryEscape(key), nil, &out)
	return out, err
}

// Route asks how args (verb first) would be routed.
func (c *Client) Route(ctx context.Context, args ...string) (api.RouteResponse, error) {
	var out api.RouteResponse
	err := c.do(ctx, http.MethodPost, "/api/route", api.CommandRequest{Args: args}, &out)
	return out, err
}

func (c *Client) Plan(ctx context.Context, args ...string) (api.PlanResponse, error) {
	var out api.PlanResponse
	err := c.do(ctx, http.MethodPost, "/api/plan", api.CommandRequest{Args: args}, &out)
	return out, err
}

// RouteRESP routes a command given in its RESP encoding.
func (c *Client) RouteRESP(ctx context.Context, packed []byte) (api.RouteResponse, error) {
	var out api.RouteResponse
	err := c.do(ctx, http.MethodPost, "/api/route", api.CommandRequest{RESP: string(packed)}, &out)
	return out, err
}

// Combine merges RESP encoded node replies, given in plan order, and
// returns the merged reply, RESP encoded as well.
func (c *Client) Combine(ctx context.Context, args []string, replies [][]byte) (api.CombineResponse, error) {
	req := api.CombineRequest{
		CommandRequest: api.CommandRequest{Args: args},
		Replies:        make([]string, len(replies)),
	}
	for i, r := range replies {
		req.Replies[i] = string(r)
	}
	var out api.CombineResponse
	err := c.do(ctx, http.MethodPost, "/api/combine", req, &out)
	return out, err
}

func (c *Client) Topology(ctx context.Context) (api.TopologyResponse, error) {
	var out api.TopologyResponse
	err := c.do(ctx, http.MethodGet, "/api/topology", nil, &out)
	return out, err
}

// UpdateTopology replaces the topology, or merges into it, and returns the new epoch.
func (c *Client) UpdateTopology(ctx context.Context, slots []cluster.Slot, merge bool) (uint64, error) {
	var out api.Response
	err := c.do(ctx, http.MethodPut, "/api/topology", api.TopologyRequest{Slots: slots, Merge: merge}, &out)
	return out.Epoch, err
}

func (c *Client) ClearTopology(ctx context.Context) (uint64, error) {
	var out api.Response
	err := c.do(ctx, http.MethodDelete, "/api/topology", nil, &out)
	return out.Epoch, err
}
