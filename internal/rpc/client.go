package rpc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
)

// Client calls a running daemon over the HTTP endpoint.
type Client struct {
	cli *jrpc2.Client
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(r)
}

// Dial prepares a client for baseURL (for example http://127.0.0.1:7531).
// No connection is made until the first call.
func Dial(baseURL, token string) *Client {
	hc := &http.Client{Timeout: 10 * time.Second}
	if token != "" {
		hc.Transport = bearerTransport{token: token, base: http.DefaultTransport}
	}
	url := strings.TrimRight(baseURL, "/") + "/rpc"
	ch := jhttp.NewChannel(url, &jhttp.ChannelOptions{Client: hc})
	return &Client{cli: jrpc2.NewClient(ch, nil)}
}

// Call invokes method and decodes the result into out (which may be nil).
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	rsp, err := c.cli.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return rsp.UnmarshalResult(out)
}

func (c *Client) Close() error { return c.cli.Close() }
