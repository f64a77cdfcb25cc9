// Package seatsaero provides a rate-limited client for the seats.aero
// Partner API and a page fetcher over its bulk availability endpoint
package seatsaero

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	perr "awardarchive/internal/platform/errors"
	"awardarchive/internal/platform/logger"
)

const (
	baseURLDefault   = "https://seats.aero/partnerapi"
	defaultTimeout   = 30 * time.Second
	defaultUA        = "awardarchive"
	defaultMaxRetry  = 5
	defaultRetryBase = 500 * time.Millisecond
	defaultInterval  = time.Second
)

// Sources are the mileage programs the partner API exposes
var Sources = []string{
	"eurobonus", "virginatlantic", "aeromexico", "american", "delta",
	"etihad", "united", "emirates", "aeroplan", "alaska",
	"velocity", "qantas", "connectmiles", "azul", "smiles",
	"flyingblue", "jetblue", "qatar", "turkish", "singapore",
}

// Options configures the Client
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration

	// Retry config for transient and rate limited responses
	MaxRetries int
	RetryBase  time.Duration

	// RateInterval is the minimum gap between request starts
	RateInterval time.Duration
}

// Client is a minimal seats.aero partner client with request pacing
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger

	mu   sync.Mutex
	last time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.RateInterval <= 0 {
		o.RateInterval = defaultInterval
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("seatsaero"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// pace enforces the rate interval, measured from the start of the previous
// call so server time counts against the budget
func (c *Client) pace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.last.IsZero() {
		if wait := c.opts.RateInterval - c.now().Sub(c.last); wait > 0 {
			c.sleep(wait)
		}
	}
	c.last = c.now()
}

// get issues a paced GET with retries on transient and rate limited
// responses; other 4xx surface immediately
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.opts.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		c.pace()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "seatsaero new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Partner-Authorization", c.opts.APIKey)

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if !c.shouldRetry(attempts) {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "seatsaero do failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("seatsaero transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		c.log.Debug().
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("seatsaero http response")

		switch {
		case resp.StatusCode == http.StatusOK:
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr != nil {
				return nil, perr.Wrapf(rerr, perr.ErrorCodeUnavailable, "seatsaero read body failed")
			}
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = drainAndClose(resp.Body)
			if !c.shouldRetry(attempts) {
				return nil, perr.TooManyRequestsf("seatsaero rate limited")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("sleep", back).Msg("seatsaero rate limited backing off")
			c.sleep(back)
			attempts++
			continue
		case resp.StatusCode >= 500:
			_ = drainAndClose(resp.Body)
			if !c.shouldRetry(attempts) {
				return nil, perr.Unavailablef("seatsaero server error %d", resp.StatusCode)
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("seatsaero transient error retrying")
			c.sleep(back)
			attempts++
			continue
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, perr.InvalidArgf("seatsaero unexpected status %d body %s", resp.StatusCode, string(body))
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	body, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "seatsaero decode %s failed", path)
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase
	ms := int64(d / time.Millisecond)
	ms = ms << uint(attempt)
	max := int64(30 * time.Second / time.Millisecond)
	if ms > max {
		ms = max
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 64*1024))
	return rc.Close()
}
