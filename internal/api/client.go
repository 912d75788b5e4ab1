// Package api is the typed catalogue of Ping endpoints. Every operation
// goes through the gateway, so authentication, error messages and shape
// validation behave the same everywhere.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"ping_client/internal/gateway"
)

// DefaultBaseURL is where the Ping API listens in a local setup.
const DefaultBaseURL = "http://localhost:8081"

type Client struct {
	gw *gateway.Client
}

func New(gw *gateway.Client) *Client {
	return &Client{gw: gw}
}

func (c *Client) Gateway() *gateway.Client {
	return c.gw
}

// MediaURL resolves a stored media path against the API base URL.
func (c *Client) MediaURL(path string) string {
	return ResolveMedia(c.gw.BaseURL(), path)
}

// ResolveMedia leaves absolute http(s) URLs alone and prefixes relative
// paths with the base URL.
func ResolveMedia(base, path string) string {
	if path == "" || strings.HasPrefix(path, "http") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func call[T any](ctx context.Context, c *Client, req gateway.Request) (T, error) {
	return gateway.Call[T](ctx, c.gw, req)
}

// exec runs a call whose response body is not needed.
func exec(ctx context.Context, c *Client, req gateway.Request) error {
	_, err := c.gw.Do(ctx, req)
	return err
}

func seg(s string) string {
	return url.PathEscape(s)
}

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}

func query(kv ...string) url.Values {
	v := make(url.Values, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

var errMissingID = errors.New("entry without id")

func requireIDs(kind string, n int, idAt func(int) int64) error {
	for i := 0; i < n; i++ {
		if idAt(i) == 0 {
			return fmt.Errorf("%s %d: %w", kind, i, errMissingID)
		}
	}
	return nil
}
