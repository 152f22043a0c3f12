// Package hass talks to the Home Assistant websocket API.
// It authenticates with a long-lived token, reads light state and sets colors.
package hass

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPort is the Home Assistant HTTP port.
const DefaultPort = "8123"

const websocketPath = "/api/websocket"

// Client dials websocket connections to the hub.
type Client struct {
	url    string
	dialer *websocket.Dialer
}

// NewClient creates a client for address, which is either a host, a host:port
// or a full http(s)/ws(s) URL. secure selects wss when no scheme is given.
func NewClient(address string, secure bool, handshakeTimeout time.Duration) (*Client, error) {
	u, err := websocketURL(address, secure)
	if err != nil {
		return nil, err
	}
	if handshakeTimeout == 0 {
		handshakeTimeout = 10 * time.Second
	}

	return &Client{
		url: u,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
	}, nil
}

// URL returns the websocket endpoint.
func (c *Client) URL() string {
	return c.url
}

// Dial opens a new, unauthenticated connection.
func (c *Client) Dial(ctx context.Context) (Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to hub at %s: %w", c.url, err)
	}
	return conn, nil
}

func websocketURL(address string, secure bool) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("hub address is empty")
	}

	if !strings.Contains(address, "://") {
		host := address
		if _, _, err := net.SplitHostPort(address); err != nil {
			host = net.JoinHostPort(address, DefaultPort)
		}
		scheme := "ws"
		if secure {
			scheme = "wss"
		}
		return scheme + "://" + host + websocketPath, nil
	}

	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("invalid hub address %q: %w", address, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported hub scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = websocketPath
	}
	return u.String(), nil
}
