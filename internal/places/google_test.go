package places

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/partner-finder/internal/config"
	"github.com/sells-group/partner-finder/internal/model"
	"github.com/sells-group/partner-finder/internal/resilience"
	"github.com/sells-group/partner-finder/pkg/google"
	"github.com/sells-group/partner-finder/pkg/google/mocks"
)

func fastPolicy(attempts int) resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func TestResolveLocation_PlaceID(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("GetPlace", mock.Anything, "ChIJ-start", google.LocationFieldMask).
		Return(&google.Place{
			ID:               "ChIJ-start",
			FormattedAddress: "1 Place de la République, 75011 Paris, France",
			Location:         &google.LatLng{Latitude: 48.85, Longitude: 2.35},
		}, nil).Once()

	p := NewGoogleProvider(client, WithLocationCacheTTL(time.Minute))
	loc, err := p.ResolveLocation(context.Background(), model.LocationRef{PlaceID: "ChIJ-start"})
	require.NoError(t, err)
	assert.InDelta(t, 48.85, loc.Lat, 0.0001)
	assert.InDelta(t, 2.35, loc.Lng, 0.0001)
	assert.Contains(t, loc.FormattedAddress, "75011 Paris")

	// Second call is served from the memo; Once() above enforces it.
	again, err := p.ResolveLocation(context.Background(), model.LocationRef{PlaceID: "ChIJ-start"})
	require.NoError(t, err)
	assert.Equal(t, loc, again)
}

func TestResolveLocation_NotCachedByDefault(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("GetPlace", mock.Anything, "ChIJ-start", google.LocationFieldMask).
		Return(&google.Place{
			ID:       "ChIJ-start",
			Location: &google.LatLng{Latitude: 48.85, Longitude: 2.35},
		}, nil).Twice()

	p := NewGoogleProvider(client)
	assert.Nil(t, p.locations)
	for i := 0; i < 2; i++ {
		_, err := p.ResolveLocation(context.Background(), model.LocationRef{PlaceID: "ChIJ-start"})
		require.NoError(t, err)
	}
	client.AssertNumberOfCalls(t, "GetPlace", 2)
}

func TestResolveLocation_Address(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.TextQuery == "12 rue Oberkampf Paris" && r.MaxResultCount == 1
	})).Return(&google.TextSearchResponse{Places: []google.Place{{
		ID:               "ChIJ-addr",
		FormattedAddress: "12 Rue Oberkampf, 75011 Paris, France",
		Location:         &google.LatLng{Latitude: 48.864, Longitude: 2.372},
	}}}, nil)

	p := NewGoogleProvider(client)
	loc, err := p.ResolveLocation(context.Background(), model.LocationRef{Address: "12 rue Oberkampf Paris"})
	require.NoError(t, err)
	assert.InDelta(t, 48.864, loc.Lat, 0.0001)
	assert.Equal(t, "12 Rue Oberkampf, 75011 Paris, France", loc.FormattedAddress)
}

func TestResolveLocation_Failures(t *testing.T) {
	t.Run("empty ref", func(t *testing.T) {
		p := NewGoogleProvider(mocks.NewMockClient(t))
		_, err := p.ResolveLocation(context.Background(), model.LocationRef{})
		assert.True(t, errors.Is(err, ErrLocationNotFound))
	})

	t.Run("unknown place", func(t *testing.T) {
		client := mocks.NewMockClient(t)
		client.On("GetPlace", mock.Anything, "nope", google.LocationFieldMask).Return(nil, google.ErrNotFound)

		p := NewGoogleProvider(client)
		_, err := p.ResolveLocation(context.Background(), model.LocationRef{PlaceID: "nope"})
		assert.True(t, errors.Is(err, ErrLocationNotFound))
		assert.True(t, IsFatal(err))
	})

	t.Run("address without match", func(t *testing.T) {
		client := mocks.NewMockClient(t)
		client.On("TextSearch", mock.Anything, mock.Anything).Return(&google.TextSearchResponse{}, nil)

		p := NewGoogleProvider(client)
		_, err := p.ResolveLocation(context.Background(), model.LocationRef{Address: "nowhere"})
		assert.True(t, errors.Is(err, ErrLocationNotFound))
	})

	t.Run("credentials", func(t *testing.T) {
		client := mocks.NewMockClient(t)
		client.On("GetPlace", mock.Anything, "x", google.LocationFieldMask).Return(nil, google.ErrUnauthorized)

		p := NewGoogleProvider(client)
		_, err := p.ResolveLocation(context.Background(), model.LocationRef{PlaceID: "x"})
		assert.True(t, errors.Is(err, ErrCredentials))
	})
}

func TestTextSearch_Success(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.TextQuery == "plombier 75011 Paris" &&
			r.MaxResultCount == 9 &&
			r.IncludedType == "plumber" &&
			r.RankPreference == "DISTANCE" &&
			r.LocationBias != nil &&
			r.LocationBias.Circle.Radius == 5000
	})).Return(&google.TextSearchResponse{Places: []google.Place{
		{ID: "a", DisplayName: google.LocalizedText{Text: " Plomberie Martin "}},
		{ID: "", DisplayName: google.LocalizedText{Text: "no id"}},
	}}, nil)

	p := NewGoogleProvider(client)
	res := p.TextSearch(context.Background(), SearchQuery{
		Text:       "plombier 75011 Paris",
		Center:     model.Location{Lat: 48.85, Lng: 2.35},
		RadiusM:    5000,
		MaxResults: 9,
		Type:       "plumber",
	})

	require.Equal(t, OK, res.Outcome)
	require.NoError(t, res.Err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Plomberie Martin", res.Records[0].Name)
}

func TestTextSearch_TransientRetriedThenSkip(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).
		Return(nil, &google.APIError{StatusCode: http.StatusServiceUnavailable}).Times(2)

	p := NewGoogleProvider(client, WithPolicy(fastPolicy(2)))
	res := p.TextSearch(context.Background(), SearchQuery{Text: "q"})

	assert.Equal(t, Skip, res.Outcome)
	assert.Error(t, res.Err)
	assert.Empty(t, res.Records)
}

func TestTextSearch_TransientRecovers(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).
		Return(nil, &google.APIError{StatusCode: http.StatusTooManyRequests}).Once()
	client.On("TextSearch", mock.Anything, mock.Anything).
		Return(&google.TextSearchResponse{Places: []google.Place{{ID: "a"}}}, nil).Once()

	p := NewGoogleProvider(client, WithPolicy(fastPolicy(2)))
	res := p.TextSearch(context.Background(), SearchQuery{Text: "q"})

	assert.Equal(t, OK, res.Outcome)
	assert.Len(t, res.Records, 1)
}

func TestTextSearch_BadRequestNotRetried(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).
		Return(nil, &google.APIError{StatusCode: http.StatusBadRequest}).Once()

	p := NewGoogleProvider(client, WithPolicy(fastPolicy(3)))
	res := p.TextSearch(context.Background(), SearchQuery{Text: "q"})

	assert.Equal(t, Skip, res.Outcome)
}

func TestTextSearch_UnauthorizedIsFatal(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).Return(nil, google.ErrUnauthorized).Once()

	p := NewGoogleProvider(client)
	res := p.TextSearch(context.Background(), SearchQuery{Text: "q"})

	assert.Equal(t, Fatal, res.Outcome)
	assert.True(t, errors.Is(res.Err, ErrCredentials))
}

func TestTextSearch_BreakerOpenIsSkip(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).
		Return(nil, &google.APIError{StatusCode: http.StatusBadGateway}).Once()

	p := NewGoogleProvider(client,
		WithPolicy(fastPolicy(1)),
		WithBreaker(resilience.NewBreaker(1, time.Hour)),
	)
	first := p.TextSearch(context.Background(), SearchQuery{Text: "q"})
	assert.Equal(t, Skip, first.Outcome)

	second := p.TextSearch(context.Background(), SearchQuery{Text: "q"})
	assert.Equal(t, Skip, second.Outcome)
	assert.True(t, errors.Is(second.Err, resilience.ErrBreakerOpen))
}

func TestPlaceDetails(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("GetPlace", mock.Anything, "a", google.DetailsFieldMask).Return(&google.Place{
		ID:                       "a",
		DisplayName:              google.LocalizedText{Text: "Plomberie Martin"},
		FormattedAddress:         "12 Rue Oberkampf, 75011 Paris, France",
		InternationalPhoneNumber: "+33 1 43 00 00 00",
		WebsiteURI:               "https://plomberie-martin.fr",
		GoogleMapsURI:            "https://maps.google.com/?cid=1",
		Types:                    []string{"plumber"},
		PrimaryType:              "plumber",
		PrimaryTypeDisplayName:   &google.LocalizedText{Text: "Plombier"},
		Rating:                   4.5,
		UserRatingCount:          12,
	}, nil)
	client.On("GetPlace", mock.Anything, "gone", google.DetailsFieldMask).Return(nil, google.ErrNotFound)

	p := NewGoogleProvider(client)

	res := p.PlaceDetails(context.Background(), "a")
	require.Equal(t, OK, res.Outcome)
	require.NotNil(t, res.Record)
	assert.Equal(t, "+33 1 43 00 00 00", res.Record.Phone)
	assert.Equal(t, "Plombier", res.Record.PrimaryTypeDisplayName)
	require.NotNil(t, res.Record.Rating)
	assert.InDelta(t, 4.5, *res.Record.Rating, 0.001)
	assert.Equal(t, 12, *res.Record.RatingCount)

	gone := p.PlaceDetails(context.Background(), "gone")
	assert.Equal(t, Skip, gone.Outcome)
	assert.Nil(t, gone.Record)
}

func TestPlaceDetails_ContextCanceledIsFatal(t *testing.T) {
	client := mocks.NewMockClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewGoogleProvider(client, WithRateLimit(1))
	res := p.PlaceDetails(ctx, "a")
	assert.Equal(t, Fatal, res.Outcome)
	assert.True(t, errors.Is(res.Err, context.Canceled))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ok", OK.String())
	assert.Equal(t, "skip", Skip.String())
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}

func TestNewGoogleProviderFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Google.Key = "k"
	cfg.Google.BaseURL = "http://127.0.0.1:1"
	cfg.Google.RateLimit = 10
	cfg.Google.LocationCacheMin = 5
	cfg.Google.BreakerThreshold = 3
	cfg.Retry.MaxAttempts = 1

	p := NewGoogleProviderFromConfig(cfg)
	require.NotNil(t, p)
	assert.NotNil(t, p.breaker)
	assert.NotNil(t, p.locations)
	assert.Equal(t, 1, p.policy.MaxAttempts)

	cfg.Google.LocationCacheMin = 0
	assert.Nil(t, NewGoogleProviderFromConfig(cfg).locations)
}
