// Package httpx wraps outbound HTTP calls with a hard deadline so a hung
// upstream becomes a typed timeout failure instead of a stuck goroutine.
package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"vanity/internal/upstreamerr"
)

const DefaultTimeout = 15 * time.Second

type Client struct {
	hc      *http.Client
	timeout time.Duration
}

// New builds a client with the given default per-call timeout. A zero
// timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{hc: &http.Client{}, timeout: timeout}
}

func (c *Client) Timeout() time.Duration { return c.timeout }

// Do executes the request bounded by the client timeout. The deadline is
// enforced through the request context, so the timer is released on every
// path. Deadline expiry yields a TimeoutError carrying the URL and timeout;
// any other transport failure propagates unchanged.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.DoTimeout(ctx, req, c.timeout)
}

// DoTimeout is Do with a per-call override.
func (c *Client) DoTimeout(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := c.hc.Do(req.WithContext(tctx))
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) || (tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil) {
			return nil, &upstreamerr.TimeoutError{URL: req.URL.String(), Timeout: timeout}
		}
		return nil, err
	}
	// Tie the cancel to body consumption so the context outlives the call
	// for streaming reads.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// GetJSON issues a GET with the given headers and decodes a 2xx body into
// out. Non-2xx responses are returned to the caller for classification with
// the body drained and closed.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) (int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

// PostJSON issues a POST with a JSON body and decodes a 2xx response into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body, out any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
