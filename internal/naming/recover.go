package naming

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/partner-finder/internal/metrics"
)

// recoveryPaths are tried in order on the business website.
var recoveryPaths = []string{"/", "/contact", "/a-propos"}

// maxPageBytes bounds how much of a page is read.
const maxPageBytes = 512 << 10

// Recoverer looks up the name a business uses on its own website.
type Recoverer struct {
	http      *http.Client
	userAgent string
	timeout   time.Duration
	robots    *robotsChecker
	names     *cache.Cache
}

// RecovererOption configures a Recoverer.
type RecovererOption func(*Recoverer)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) RecovererOption {
	return func(r *Recoverer) { r.http = c }
}

// WithUserAgent sets the User-Agent sent to websites and matched against
// robots.txt.
func WithUserAgent(ua string) RecovererOption {
	return func(r *Recoverer) {
		if ua != "" {
			r.userAgent = ua
		}
	}
}

// WithTimeout bounds each page request.
func WithTimeout(d time.Duration) RecovererOption {
	return func(r *Recoverer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCacheTTL sets how long fetched pages and robots.txt files are
// remembered.
func WithCacheTTL(ttl time.Duration) RecovererOption {
	return func(r *Recoverer) {
		if ttl > 0 {
			r.names = cache.New(ttl, 2*ttl)
		}
	}
}

// NewRecoverer creates a Recoverer.
func NewRecoverer(opts ...RecovererOption) *Recoverer {
	r := &Recoverer{
		http: &http.Client{
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: "Mozilla/5.0 (compatible; PartnerFinder/1.0)",
		timeout:   4 * time.Second,
		names:     cache.New(2*time.Hour, 4*time.Hour),
	}
	for _, o := range opts {
		o(r)
	}
	r.robots = newRobotsChecker(r.http, r.userAgent, r.timeout, r.names)
	return r
}

// Recover returns the website's name for the business when it shares a
// significant word with the listing name. ok is false when nothing usable
// was found; the listing name should then be kept.
func (r *Recoverer) Recover(ctx context.Context, listingName, website string) (string, bool) {
	base, err := siteRoot(website)
	if err != nil {
		return "", false
	}

	for _, path := range recoveryPaths {
		if ctx.Err() != nil {
			return "", false
		}
		page := base.ResolveReference(&url.URL{Path: path})
		for _, c := range r.pageNames(ctx, page) {
			if sharesToken(c, listingName) {
				metrics.NameRecoveries.WithLabelValues("hit").Inc()
				return Clean(c), true
			}
		}
	}
	metrics.NameRecoveries.WithLabelValues("miss").Inc()
	return "", false
}

// pageNames returns the name candidates found on page. The list is cached
// per page, so listings sharing a website are each matched against it
// without refetching. A page that could not be read caches as empty.
func (r *Recoverer) pageNames(ctx context.Context, page *url.URL) []string {
	key := "page:" + page.String()
	if v, found := r.names.Get(key); found {
		metrics.NameRecoveries.WithLabelValues("cached").Inc()
		return v.([]string)
	}

	log := zap.L().With(zap.String("host", page.Host), zap.String("path", page.Path))
	if !r.robots.allowed(ctx, page) {
		log.Debug("naming: disallowed by robots.txt")
		r.names.Set(key, []string{}, cache.DefaultExpiration)
		return nil
	}
	candidates, err := r.fetchNames(ctx, page.String())
	if err != nil {
		log.Debug("naming: fetch failed", zap.Error(err))
		if ctx.Err() == nil {
			r.names.Set(key, []string{}, cache.DefaultExpiration)
		}
		return nil
	}
	if candidates == nil {
		candidates = []string{}
	}
	r.names.Set(key, candidates, cache.DefaultExpiration)
	return candidates
}

func (r *Recoverer) fetchNames(ctx context.Context, pageURL string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "naming: create request")
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "naming: fetch page")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("naming: %s returned %d", pageURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, eris.Errorf("naming: %s is %s", pageURL, ct)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "naming: parse html")
	}
	return extractNames(doc), nil
}

// extractNames returns og:site_name then the <title> segments, in that order.
func extractNames(doc *html.Node) []string {
	var siteName, title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if siteName == "" && attr(n, "property") == "og:site_name" {
					siteName = strings.TrimSpace(attr(n, "content"))
				}
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var out []string
	if siteName != "" {
		out = append(out, siteName)
	}
	if title != "" {
		out = append(out, titleSegments(title)...)
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// titleSegments splits "Plomberie Martin - Plombier à Paris" into its parts.
func titleSegments(title string) []string {
	parts := []string{title}
	for _, sep := range []string{" | ", " - ", " – ", " — ", " : "} {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var stopwords = map[string]struct{}{
	"les": {}, "des": {}, "aux": {}, "pour": {}, "avec": {}, "sur": {}, "chez": {},
	"the": {}, "and": {}, "sarl": {}, "sas": {}, "eurl": {}, "accueil": {}, "paris": {},
}

// sharesToken reports whether a and b have a word of three or more letters
// in common, ignoring case, accents and filler words.
func sharesToken(a, b string) bool {
	ta := tokens(a)
	if len(ta) == 0 {
		return false
	}
	for t := range tokens(b) {
		if _, ok := ta[t]; ok {
			return true
		}
	}
	return false
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func tokens(s string) map[string]struct{} {
	folded, _, err := transform.String(accentFolder, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func siteRoot(website string) (*url.URL, error) {
	website = strings.TrimSpace(website)
	if website == "" {
		return nil, eris.New("naming: empty website")
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil {
		return nil, eris.Wrap(err, "naming: parse website")
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, eris.Errorf("naming: unusable website %q", website)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}
