package naming

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// robotsChecker answers robots.txt questions, caching one file per host in
// the shared cache.
type robotsChecker struct {
	http      *http.Client
	userAgent string
	timeout   time.Duration
	cache     *cache.Cache
}

func newRobotsChecker(hc *http.Client, userAgent string, timeout time.Duration, c *cache.Cache) *robotsChecker {
	return &robotsChecker{http: hc, userAgent: userAgent, timeout: timeout, cache: c}
}

// allowed reports whether page may be fetched. An unreachable robots.txt
// allows everything.
func (r *robotsChecker) allowed(ctx context.Context, page *url.URL) bool {
	data := r.load(ctx, page)
	if data == nil {
		return true
	}
	return data.TestAgent(page.EscapedPath(), r.userAgent)
}

func (r *robotsChecker) load(ctx context.Context, page *url.URL) *robotstxt.RobotsData {
	key := "robots:" + page.Host
	if v, ok := r.cache.Get(key); ok {
		data, _ := v.(*robotstxt.RobotsData)
		return data
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	robotsURL := url.URL{Scheme: page.Scheme, Host: page.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	r.cache.Set(key, data, cache.DefaultExpiration)
	return data
}
