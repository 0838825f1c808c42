package places

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/partner-finder/internal/config"
	"github.com/sells-group/partner-finder/internal/metrics"
	"github.com/sells-group/partner-finder/internal/model"
	"github.com/sells-group/partner-finder/internal/resilience"
	"github.com/sells-group/partner-finder/pkg/google"
)

// GoogleProvider implements Provider over the Google Places API. Calls are
// rate limited, retried per policy on transient failures, and guarded by a
// circuit breaker. Resolved locations are memoised only when a location
// cache TTL is set.
type GoogleProvider struct {
	client    google.Client
	limiter   *rate.Limiter
	policy    resilience.Policy
	breaker   *resilience.Breaker
	locations *cache.Cache
	language  string
	region    string
}

// Option configures a GoogleProvider.
type Option func(*GoogleProvider)

// WithRateLimit sets the sustained requests per second (burst 1).
func WithRateLimit(rps float64) Option {
	return func(p *GoogleProvider) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithPolicy sets the retry policy.
func WithPolicy(policy resilience.Policy) Option {
	return func(p *GoogleProvider) { p.policy = policy }
}

// WithBreaker sets the circuit breaker. nil disables it.
func WithBreaker(b *resilience.Breaker) Option {
	return func(p *GoogleProvider) { p.breaker = b }
}

// WithLocationCacheTTL memoises resolved locations for ttl. Zero, the
// default, resolves every reference afresh.
func WithLocationCacheTTL(ttl time.Duration) Option {
	return func(p *GoogleProvider) {
		if ttl > 0 {
			p.locations = cache.New(ttl, 2*ttl)
		}
	}
}

// WithLanguage sets the language and region codes sent with searches.
func WithLanguage(language, region string) Option {
	return func(p *GoogleProvider) {
		p.language = language
		p.region = region
	}
}

// NewGoogleProvider wraps client.
func NewGoogleProvider(client google.Client, opts ...Option) *GoogleProvider {
	p := &GoogleProvider{
		client:   client,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		policy:   resilience.DefaultPolicy(),
		language: "fr",
		region:   "FR",
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NewGoogleProviderFromConfig builds the HTTP client and provider from
// configuration.
func NewGoogleProviderFromConfig(cfg *config.Config) *GoogleProvider {
	g := cfg.Google
	client := google.NewClient(g.Key,
		google.WithBaseURL(g.BaseURL),
		google.WithTimeout(time.Duration(g.TimeoutSecs)*time.Second),
	)
	return NewGoogleProvider(client,
		WithRateLimit(g.RateLimit),
		WithPolicy(resilience.PolicyFromConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)),
		WithBreaker(resilience.BreakerFromConfig(g.BreakerThreshold, g.BreakerResetSecs)),
		WithLocationCacheTTL(time.Duration(g.LocationCacheMin)*time.Minute),
		WithLanguage(g.LanguageCode, g.RegionCode),
	)
}

// ResolveLocation implements Provider.
func (p *GoogleProvider) ResolveLocation(ctx context.Context, ref model.LocationRef) (*model.ResolvedLocation, error) {
	if ref.IsZero() {
		return nil, eris.Wrap(ErrLocationNotFound, "places: empty location reference")
	}
	key := ref.String()
	if p.locations != nil {
		if v, ok := p.locations.Get(key); ok {
			loc := v.(model.ResolvedLocation)
			return &loc, nil
		}
	}

	var (
		loc *model.ResolvedLocation
		err error
	)
	if ref.PlaceID != "" {
		loc, err = p.resolvePlaceID(ctx, ref.PlaceID)
	} else {
		loc, err = p.resolveAddress(ctx, ref.Address)
	}
	if err != nil {
		return nil, err
	}

	if p.locations != nil {
		p.locations.Set(key, *loc, cache.DefaultExpiration)
	}
	return loc, nil
}

func (p *GoogleProvider) resolvePlaceID(ctx context.Context, id string) (*model.ResolvedLocation, error) {
	place, err := call(ctx, p, "resolve_location", func(ctx context.Context) (*google.Place, error) {
		return p.client.GetPlace(ctx, id, google.LocationFieldMask)
	})
	switch {
	case errors.Is(err, google.ErrNotFound):
		return nil, eris.Wrapf(ErrLocationNotFound, "places: place %s", id)
	case err != nil:
		return nil, fatalLocationErr(ctx, err, id)
	case place.Location == nil:
		return nil, eris.Wrapf(ErrLocationNotFound, "places: place %s has no coordinates", id)
	}
	return &model.ResolvedLocation{
		Location:         model.Location{Lat: place.Location.Latitude, Lng: place.Location.Longitude},
		FormattedAddress: place.FormattedAddress,
	}, nil
}

func (p *GoogleProvider) resolveAddress(ctx context.Context, address string) (*model.ResolvedLocation, error) {
	resp, err := call(ctx, p, "resolve_location", func(ctx context.Context) (*google.TextSearchResponse, error) {
		return p.client.TextSearch(ctx, google.TextSearchRequest{
			TextQuery:      address,
			MaxResultCount: 1,
			LanguageCode:   p.language,
			RegionCode:     p.region,
		})
	})
	if err != nil {
		return nil, fatalLocationErr(ctx, err, address)
	}
	for _, place := range resp.Places {
		if place.Location == nil {
			continue
		}
		formatted := place.FormattedAddress
		if formatted == "" {
			formatted = address
		}
		return &model.ResolvedLocation{
			Location:         model.Location{Lat: place.Location.Latitude, Lng: place.Location.Longitude},
			FormattedAddress: formatted,
		}, nil
	}
	return nil, eris.Wrapf(ErrLocationNotFound, "places: address %q", address)
}

func fatalLocationErr(ctx context.Context, err error, ref string) error {
	if errors.Is(err, google.ErrUnauthorized) {
		return eris.Wrap(ErrCredentials, err.Error())
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	zap.L().Warn("places: location lookup failed", zap.String("ref", ref), zap.Error(err))
	return eris.Wrapf(ErrLocationNotFound, "places: resolve %q: %v", ref, err)
}

// TextSearch implements Provider.
func (p *GoogleProvider) TextSearch(ctx context.Context, q SearchQuery) SearchResult {
	started := time.Now()
	req := google.TextSearchRequest{
		TextQuery:      q.Text,
		MaxResultCount: q.MaxResults,
		IncludedType:   q.Type,
		LanguageCode:   p.language,
		RegionCode:     p.region,
		RankPreference: "DISTANCE",
		LocationBias: &google.LocationBias{Circle: google.Circle{
			Center: google.LatLng{Latitude: q.Center.Lat, Longitude: q.Center.Lng},
			Radius: q.RadiusM,
		}},
	}
	resp, err := call(ctx, p, "text_search", func(ctx context.Context) (*google.TextSearchResponse, error) {
		return p.client.TextSearch(ctx, req)
	})
	if err != nil {
		out := outcomeOf(err)
		metrics.ObserveProviderCall("text_search", out.String(), started)
		return SearchResult{Outcome: out, Err: wrapOutcomeErr(err, "places: text search %q", q.Text)}
	}

	records := make([]model.PlaceRecord, 0, len(resp.Places))
	for i := range resp.Places {
		if resp.Places[i].ID == "" {
			continue
		}
		records = append(records, ToRecord(&resp.Places[i]))
	}
	metrics.ObserveProviderCall("text_search", OK.String(), started)
	return SearchResult{Records: records, Outcome: OK}
}

// PlaceDetails implements Provider.
func (p *GoogleProvider) PlaceDetails(ctx context.Context, id string) DetailResult {
	started := time.Now()
	place, err := call(ctx, p, "place_details", func(ctx context.Context) (*google.Place, error) {
		return p.client.GetPlace(ctx, id, google.DetailsFieldMask)
	})
	if err != nil {
		out := outcomeOf(err)
		metrics.ObserveProviderCall("place_details", out.String(), started)
		return DetailResult{Outcome: out, Err: wrapOutcomeErr(err, "places: details %s", id)}
	}
	if place == nil || place.ID == "" {
		metrics.ObserveProviderCall("place_details", Skip.String(), started)
		return DetailResult{Outcome: Skip, Err: eris.Errorf("places: details %s: empty record", id)}
	}
	rec := ToRecord(place)
	metrics.ObserveProviderCall("place_details", OK.String(), started)
	return DetailResult{Record: &rec, Outcome: OK}
}

// call runs fn under the rate limiter, retry policy and breaker.
func call[T any](ctx context.Context, p *GoogleProvider, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	policy := p.policy
	policy.Retryable = retryable
	return resilience.Retry(ctx, policy, "places."+op, func(ctx context.Context) (T, error) {
		return resilience.Call(ctx, p.breaker, retryable, func(ctx context.Context) (T, error) {
			if err := p.limiter.Wait(ctx); err != nil {
				var zero T
				return zero, eris.Wrap(err, "places: rate limiter")
			}
			return fn(ctx)
		})
	})
}

func retryable(err error) bool {
	if errors.Is(err, resilience.ErrBreakerOpen) {
		return false
	}
	return resilience.IsTransient(err)
}

// outcomeOf maps a provider error to an outcome. Rejected credentials and a
// cancelled context end the run; anything else only costs the one call.
func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, google.ErrUnauthorized),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return Fatal
	default:
		return Skip
	}
}

func wrapOutcomeErr(err error, format string, args ...any) error {
	if errors.Is(err, google.ErrUnauthorized) {
		return eris.Wrapf(ErrCredentials, format, args...)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return eris.Wrapf(err, format, args...)
}

// ToRecord converts an API place into a PlaceRecord.
func ToRecord(p *google.Place) model.PlaceRecord {
	rec := model.PlaceRecord{
		ID:          p.ID,
		Name:        strings.TrimSpace(p.DisplayName.Text),
		Address:     strings.TrimSpace(p.FormattedAddress),
		Phone:       p.NationalPhoneNumber,
		Website:     p.WebsiteURI,
		MapsURL:     p.GoogleMapsURI,
		Types:       p.Types,
		PrimaryType: p.PrimaryType,
	}
	if rec.Phone == "" {
		rec.Phone = p.InternationalPhoneNumber
	}
	if p.PrimaryTypeDisplayName != nil {
		rec.PrimaryTypeDisplayName = strings.TrimSpace(p.PrimaryTypeDisplayName.Text)
	}
	if p.Location != nil {
		rec.Location = model.Location{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
	}
	if p.UserRatingCount > 0 {
		rating, count := p.Rating, p.UserRatingCount
		rec.Rating = &rating
		rec.RatingCount = &count
	}
	return rec
}
