package util

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"phdhunt-engine/internal/scrape/types"
	"phdhunt-engine/internal/telemetry"
)

type ClientOptions struct {
	Timeout    time.Duration // per attempt
	Retries    int
	Backoff    time.Duration
	MaxBackoff time.Duration
	Delay      time.Duration // minimum gap between requests to one site
	UserAgent  string
}

// Client fetches listing pages. It spaces requests per site, retries
// transient failures with exponential backoff and bounds every attempt with
// a timeout.
type Client struct {
	http    *resty.Client
	limiter *SiteLimiter
}

func NewClient(o ClientOptions) *Client {
	c := &Client{
		http:    resty.New(),
		limiter: NewSiteLimiter(o.Delay),
	}

	c.http.SetTimeout(o.Timeout)
	c.http.SetRetryCount(o.Retries)
	c.http.SetRetryWaitTime(o.Backoff)
	c.http.SetRetryMaxWaitTime(o.MaxBackoff)
	c.http.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		if res == nil {
			return false
		}
		s := res.StatusCode()
		return s == http.StatusTooManyRequests || s >= 500
	})

	// browser-like headers; several listing sites serve a stripped page otherwise
	c.http.SetHeaders(map[string]string{
		"User-Agent":      o.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Connection":      "keep-alive",
	})

	c.http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return c.limiter.Wait(req.Context(), req.URL)
	})
	telemetry.InstrumentResty(c.http)

	return c
}

// GetDocument fetches url and parses it as HTML. Failures come back as
// *types.FetchError.
func (c *Client) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	res, err := c.http.R().SetContext(ctx).Get(url)

	attempts := 1
	if res != nil && res.Request != nil && res.Request.Attempt > 0 {
		attempts = res.Request.Attempt
	}
	if err != nil {
		return nil, &types.FetchError{URL: url, Attempts: attempts, Err: err}
	}
	if res.IsError() {
		return nil, &types.FetchError{
			URL:      url,
			Status:   res.StatusCode(),
			Attempts: attempts,
			Err:      fmt.Errorf("status %s", res.Status()),
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, &types.FetchError{URL: url, Status: res.StatusCode(), Attempts: attempts, Err: fmt.Errorf("parse html: %w", err)}
	}
	return doc, nil
}
