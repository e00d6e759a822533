// Package httpclient provides the shared HTTP transport used by every
// HTTP-family monitor check, bounding the outbound request rate per host
// with a token-bucket rate limiter so an aggressive check interval never
// hammers a monitored endpoint. It limits the request rate only; the number
// of requests in flight at once is not bounded.
package httpclient

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Client wraps a shared *http.Client with a per-host rate limiter.
type Client struct {
	http *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New constructs a Client. requestsPerMinute/burst bound outbound requests
// per host; 0 requestsPerMinute disables limiting.
func New(requestsPerMinute, burst int) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
	}
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[host] = l
	}
	return l
}

// Do executes req, waiting on the per-host rate limiter until req's own
// context allows or denies the wait. The client never overrides req's
// timeout/deadline; callers set that via context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.limit > 0 {
		if err := c.limiterFor(req.URL.Host).Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return c.http.Do(req)
}
