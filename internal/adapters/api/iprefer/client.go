// Package iprefer scrapes the Preferred Hotels directory and its rate
// calendar API into flat hotel and availability records
package iprefer

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
	siteDefault      = "https://preferredhotels.com"
	calendarDefault  = "https://ptgapis.com/rate-calendar/v2"
	defaultTimeout   = 30 * time.Second
	defaultUA        = "awardarchive"
	defaultMaxRetry  = 5
	defaultRetryBase = 500 * time.Millisecond
	defaultInterval  = 500 * time.Millisecond
)

// Options configures the Client
type Options struct {
	SiteURL     string
	CalendarURL string
	UserAgent   string
	Timeout     time.Duration

	MaxRetries int
	RetryBase  time.Duration

	// RateInterval is the minimum gap between request starts
	RateInterval time.Duration
}

// Client fetches hotel pages and the rate calendar with request pacing
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
	if o.SiteURL == "" {
		o.SiteURL = siteDefault
	}
	if o.CalendarURL == "" {
		o.CalendarURL = calendarDefault
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
		log:   *logger.Named("iprefer"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// pace enforces the rate interval measured from the previous call's start
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

// get issues a paced GET with retries on transient failures
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
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
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "iprefer new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if !c.shouldRetry(attempts) {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "iprefer do failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("iprefer transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		c.log.Debug().
			Str("url", u).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("iprefer http response")

		switch {
		case resp.StatusCode == http.StatusOK:
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr != nil {
				return nil, perr.Wrapf(rerr, perr.ErrorCodeUnavailable, "iprefer read body failed")
			}
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			_ = drainAndClose(resp.Body)
			if !c.shouldRetry(attempts) {
				if resp.StatusCode == http.StatusTooManyRequests {
					return nil, perr.TooManyRequestsf("iprefer rate limited")
				}
				return nil, perr.Unavailablef("iprefer server error %d", resp.StatusCode)
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("status", resp.StatusCode).Msg("iprefer transient error retrying")
			c.sleep(back)
			attempts++
			continue
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, perr.InvalidArgf("iprefer unexpected status %d body %s", resp.StatusCode, string(body))
		}
	}
}

func (c *Client) getJSON(ctx context.Context, u string, q url.Values, out any) error {
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	body, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "iprefer decode failed")
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
