// Package netfetch is the HTTP-first probe client used by the domain
// extractors before falling back to a full browser render: a cheap GET
// with a realistic TLS ClientHello (via refraction-networking/utls)
// often succeeds where a bare net/http client gets blocked outright.
package netfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
)

// Client performs uTLS-fingerprinted HTTP GETs with a bounded timeout.
type Client struct {
	timeout   time.Duration
	userAgent string
}

func New(timeout time.Duration) *Client {
	return &Client{
		timeout:   timeout,
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
}

// Fetch performs a single GET, returning the status code and body.
// Ctx's deadline is clamped to the client's configured timeout. Callers
// treat any error here as a signal to escalate to the real browser
// driver rather than as a tool failure in its own right.
func (c *Client) Fetch(ctx context.Context, rawURL string) (status int, body []byte, err error) {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(tctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	client := &http.Client{
		Timeout:   c.timeout,
		Transport: &http.Transport{DialTLSContext: c.dialTLS},
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	const maxBody = 8 << 20
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, data, nil
}

// dialTLS opens a raw TCP connection and performs a uTLS handshake that
// mimics a current Chrome ClientHello, rather than Go's own default
// fingerprint (which many anti-bot stacks block on sight).
func (c *Client) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	dialer := &net.Dialer{Timeout: c.timeout}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	uconn := utls.UClient(rawConn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := uconn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("utls handshake: %w", err)
	}
	return uconn, nil
}
