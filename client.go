package waitsampling

import (
	"context"
	"io"
	"net"
	"net/http"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
)

// Client queries the readout API of a running collector through its local
// socket. The zero value is not usable; construct with NewClient.
type Client struct {
	addr string
	http *http.Client
}

// NewClient returns a client for the collector listening at addr, as
// returned by SocketPath or DefaultSocketPath.
func NewClient(addr string) *Client {
	return &Client{
		addr: addr,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
					return dial(addr)
				},
			},
		},
	}
}

// Current returns the waits in progress right now.
func (c *Client) Current(ctx context.Context) ([]WaitRow, error) {
	var rows []WaitRow
	return rows, c.get(ctx, "/v1/current", &rows)
}

// History returns the recorded samples, oldest first.
func (c *Client) History(ctx context.Context) ([]WaitRow, error) {
	var rows []WaitRow
	return rows, c.get(ctx, "/v1/history", &rows)
}

// Profile returns the aggregated wait counts.
func (c *Client) Profile(ctx context.Context) ([]ProfileRow, error) {
	var rows []ProfileRow
	return rows, c.get(ctx, "/v1/profile", &rows)
}

// ResetProfile clears the collector's profile table.
func (c *Client) ResetProfile(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/profile/reset", nil)
}

// Status returns the collector's configuration and cursor positions.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	return st, c.get(ctx, "/v1/status", &st)
}

func (c *Client) get(ctx context.Context, path string, v interface{}) error {
	return c.do(ctx, http.MethodGet, path, v)
}

func (c *Client) do(ctx context.Context, method, path string, v interface{}) error {
	// The host is a placeholder: the transport always dials c.addr.
	req, err := http.NewRequestWithContext(ctx, method, "http://waitsampler"+path, nil)
	if err != nil {
		return errors.WrapIf(err, "building readout request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapIff(err, "querying collector at %s", c.addr)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("collector returned %s for %s", resp.Status, path)
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.WrapIf(err, "decoding readout response")
	}
	return nil
}
