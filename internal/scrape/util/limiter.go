package util

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SiteLimiter keeps consecutive requests to one site at least delay apart.
// Sites are keyed by lowercase host without a leading "www.", so
// www.findaphd.com and findaphd.com share one budget.
type SiteLimiter struct {
	delay time.Duration

	mu    sync.Mutex
	sites map[string]*rate.Limiter
}

// NewSiteLimiter allows one request per delay per site. A zero delay
// disables limiting.
func NewSiteLimiter(delay time.Duration) *SiteLimiter {
	return &SiteLimiter{delay: delay, sites: make(map[string]*rate.Limiter)}
}

func siteKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "_"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func (l *SiteLimiter) limiterFor(site string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.sites[site]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.delay), 1)
		l.sites[site] = lim
	}
	return lim
}

// Wait blocks until a request to raw's site may go out, or ctx is done.
func (l *SiteLimiter) Wait(ctx context.Context, raw string) error {
	if l == nil || l.delay <= 0 {
		return ctx.Err()
	}
	return l.limiterFor(siteKey(raw)).Wait(ctx)
}
