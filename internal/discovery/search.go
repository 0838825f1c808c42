package discovery

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/partner-finder/internal/catalog"
	"github.com/sells-group/partner-finder/internal/config"
	"github.com/sells-group/partner-finder/internal/metrics"
	"github.com/sells-group/partner-finder/internal/model"
	"github.com/sells-group/partner-finder/internal/naming"
	"github.com/sells-group/partner-finder/internal/places"
)

// Config controls the radius-expanding loop.
type Config struct {
	RadiusFloorM       float64
	RadiusStepM        float64
	RadiusCeilingM     float64
	OverfetchFactor    int
	MaxResultsPerQuery int
	GenericTerm        string
}

// DefaultConfig matches the configuration defaults.
func DefaultConfig() Config {
	return Config{
		RadiusFloorM:       5000,
		RadiusStepM:        5000,
		RadiusCeilingM:     50000,
		OverfetchFactor:    3,
		MaxResultsPerQuery: 20,
		GenericTerm:        "entreprise",
	}
}

// ConfigFrom maps the search section of the application config, keeping
// defaults for unset values.
func ConfigFrom(sc config.SearchConfig) Config {
	c := DefaultConfig()
	if sc.RadiusFloorM > 0 {
		c.RadiusFloorM = sc.RadiusFloorM
	}
	if sc.RadiusStepM > 0 {
		c.RadiusStepM = sc.RadiusStepM
	}
	if sc.RadiusCeilingM > 0 {
		c.RadiusCeilingM = sc.RadiusCeilingM
	}
	if sc.OverfetchFactor > 0 {
		c.OverfetchFactor = sc.OverfetchFactor
	}
	if sc.MaxResultsPerQuery > 0 {
		c.MaxResultsPerQuery = sc.MaxResultsPerQuery
	}
	if sc.GenericTerm != "" {
		c.GenericTerm = sc.GenericTerm
	}
	return c
}

// perQuery is how many raw results to ask for: over-fetched, capped.
func (c Config) perQuery(target int) int {
	n := target * c.OverfetchFactor
	if n > c.MaxResultsPerQuery {
		n = c.MaxResultsPerQuery
	}
	if n < 1 {
		n = 1
	}
	return n
}

// NameNormalizer turns a listing name into the display name.
type NameNormalizer interface {
	Normalize(ctx context.Context, name, website string) string
}

// Searcher runs searches against a places provider.
type Searcher struct {
	provider places.Provider
	catalog  *catalog.Catalog
	names    NameNormalizer
	cfg      Config
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithNameNormalizer replaces the default name cleanup.
func WithNameNormalizer(n NameNormalizer) SearcherOption {
	return func(s *Searcher) {
		if n != nil {
			s.names = n
		}
	}
}

// WithCatalog replaces the embedded catalog used to derive localities.
func WithCatalog(c *catalog.Catalog) SearcherOption {
	return func(s *Searcher) {
		if c != nil {
			s.catalog = c
		}
	}
}

// withDefaults replaces non-positive loop settings with the defaults, so a
// hand-built Config cannot stall the radius loop.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RadiusFloorM <= 0 {
		c.RadiusFloorM = d.RadiusFloorM
	}
	if c.RadiusStepM <= 0 {
		c.RadiusStepM = d.RadiusStepM
	}
	if c.RadiusCeilingM <= 0 {
		c.RadiusCeilingM = d.RadiusCeilingM
	}
	if c.OverfetchFactor <= 0 {
		c.OverfetchFactor = d.OverfetchFactor
	}
	if c.MaxResultsPerQuery <= 0 {
		c.MaxResultsPerQuery = d.MaxResultsPerQuery
	}
	if strings.TrimSpace(c.GenericTerm) == "" {
		c.GenericTerm = d.GenericTerm
	}
	return c
}

// NewSearcher creates a Searcher. Unset or non-positive Config fields take
// their default value.
func NewSearcher(provider places.Provider, cfg Config, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		provider: provider,
		catalog:  catalog.MustDefault(),
		names:    &naming.Normalizer{},
		cfg:      cfg.withDefaults(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// runState is owned by one Search call.
type runState struct {
	target    int
	accepted  []model.BusinessCandidate
	dedup     *Deduplicator
	inspected map[string]struct{}
	progress  Progress
	log       *zap.Logger
	result    *Result
}

// Search collects up to req.MaxResults candidates around req.Location.
//
// Only an unresolvable starting location, rejected credentials, an invalid
// request or the end of ctx produce an error. On credentials or ctx errors
// the candidates gathered so far are returned alongside the error.
func (s *Searcher) Search(ctx context.Context, req Request, progress Progress) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("discovery: search started",
		zap.String("location", req.Location.String()),
		zap.Int("target", req.MaxResults),
	)

	origin, err := s.provider.ResolveLocation(ctx, req.Location)
	if err != nil {
		metrics.SearchRuns.WithLabelValues("fatal").Inc()
		log.Warn("discovery: start location failed", zap.Error(err))
		return nil, eris.Wrap(err, "discovery: resolve start location")
	}

	locality := s.catalog.Locality(origin.FormattedAddress)
	if locality == "" {
		locality = strings.TrimSpace(req.Location.Address)
	}
	active := catalog.Primary(req.Types)
	filter := NewFilter(req.CompanyName, req.ExcludedIDs, active)
	queries := BuildQueries(active, s.cfg.GenericTerm, locality)
	perQuery := s.cfg.perQuery(req.MaxResults)

	st := &runState{
		target:    req.MaxResults,
		dedup:     NewDeduplicator(),
		inspected: make(map[string]struct{}),
		progress:  progress,
		log:       log,
		result: &Result{
			RunID:    runID,
			Origin:   *origin,
			Locality: locality,
		},
	}

	runErr := s.loop(ctx, st, origin.Location, queries, perQuery, filter, active)

	final := DedupCandidates(st.accepted)
	if len(final) > st.target {
		final = final[:st.target]
	}
	res := st.result
	res.Candidates = final
	res.CeilingReached = runErr == nil && len(final) < st.target

	metrics.SearchRadius.Observe(res.FinalRadius())
	switch {
	case runErr != nil && (errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)):
		metrics.SearchRuns.WithLabelValues("canceled").Inc()
	case runErr != nil:
		metrics.SearchRuns.WithLabelValues("fatal").Inc()
	case res.CeilingReached:
		metrics.SearchRuns.WithLabelValues("partial").Inc()
	default:
		metrics.SearchRuns.WithLabelValues("complete").Inc()
	}

	log.Info("discovery: search finished",
		zap.Int("accepted", len(final)),
		zap.Int("target", st.target),
		zap.Float64("final_radius_m", res.FinalRadius()),
		zap.Int("passes", len(res.Radii)),
		zap.Bool("ceiling_reached", res.CeilingReached),
		zap.Int("queries", res.Stats.Queries),
		zap.Int("detail_fetches", res.Stats.DetailFetches),
		zap.Error(runErr),
	)
	return res, runErr
}

func (s *Searcher) loop(ctx context.Context, st *runState, center model.Location, queries []Query, perQuery int, filter *Filter, active *model.SelectedType) error {
	for radius := s.cfg.RadiusFloorM; len(st.accepted) < st.target && radius <= s.cfg.RadiusCeilingM; radius += s.cfg.RadiusStepM {
		st.result.Radii = append(st.result.Radii, radius)
		st.log.Debug("discovery: radius pass", zap.Float64("radius_m", radius))

		for _, q := range queries {
			if len(st.accepted) >= st.target {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			st.result.Stats.Queries++
			sr := s.provider.TextSearch(ctx, places.SearchQuery{
				Text:       q.Text,
				Center:     center,
				RadiusM:    radius,
				MaxResults: perQuery,
				Type:       q.Type,
			})
			switch sr.Outcome {
			case places.Fatal:
				return sr.Err
			case places.Skip:
				st.result.Stats.QuerySkips++
				st.log.Warn("discovery: query failed, skipping",
					zap.String("query", q.Text),
					zap.Float64("radius_m", radius),
					zap.Error(sr.Err),
				)
				continue
			}

			survivors, reasons := filter.apply(sr.Records)
			for reason, n := range reasons {
				st.reject(reason, n)
			}

			if err := s.inspect(ctx, st, survivors, filter, active); err != nil {
				return err
			}
		}
	}
	return nil
}

// inspect fetches details for the surviving summaries of one query and
// admits the ones that still pass.
func (s *Searcher) inspect(ctx context.Context, st *runState, survivors []model.PlaceRecord, filter *Filter, active *model.SelectedType) error {
	for _, rec := range survivors {
		if len(st.accepted) >= st.target {
			return nil
		}
		if _, done := st.inspected[rec.ID]; done || st.dedup.SeenID(rec.ID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		st.result.Stats.DetailFetches++
		dr := s.provider.PlaceDetails(ctx, rec.ID)
		switch dr.Outcome {
		case places.Fatal:
			return dr.Err
		case places.Skip:
			st.result.Stats.DetailSkips++
			st.inspected[rec.ID] = struct{}{}
			st.log.Debug("discovery: details unavailable", zap.String("place_id", rec.ID), zap.Error(dr.Err))
			continue
		}

		detailed := *dr.Record
		if detailed.ID == "" {
			detailed.ID = rec.ID
		}
		if rejected, reason := filter.Reject(detailed); rejected {
			st.inspected[rec.ID] = struct{}{}
			st.reject(reason, 1)
			st.log.Debug("discovery: rejected after details", zap.String("place_id", rec.ID), zap.String("reason", reason))
			continue
		}

		// The display name is final before admission so the composite key
		// seen here is the one the closing sweep sees.
		cand := newCandidate(detailed, active)
		cand.Name = naming.Clean(cand.Name)
		if cand.HasWebsite() {
			cand.Name = s.names.Normalize(ctx, cand.Name, cand.Website)
		}
		if !st.dedup.Admit(cand.ID, cand.Name, cand.Address) {
			st.inspected[rec.ID] = struct{}{}
			st.reject(ReasonDuplicate, 1)
			continue
		}

		st.accepted = append(st.accepted, cand)
		metrics.CandidatesAccepted.Inc()
		st.notify()
	}
	return nil
}

func (st *runState) reject(reason string, n int) {
	st.result.Stats.reject(reason, n)
	metrics.CandidatesRejected.WithLabelValues(reason).Add(float64(n))
}

// notify calls the progress callback. A panicking callback is logged and
// does not end the run.
func (st *runState) notify() {
	if st.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			st.log.Error("discovery: progress callback panicked", zap.Any("panic", r))
		}
	}()
	st.progress(len(st.accepted), st.target)
}

// newCandidate builds a candidate from a detailed record. The name is
// cleaned by the caller.
func newCandidate(rec model.PlaceRecord, active *model.SelectedType) model.BusinessCandidate {
	c := model.BusinessCandidate{
		ID:            rec.ID,
		Name:          rec.Name,
		Activity:      Classify(rec, active),
		Address:       rec.Address,
		Phone:         model.OrNotAvailable(rec.Phone),
		Website:       model.OrNotAvailable(rec.Website),
		MapsURL:       rec.MapsURL,
		CategoryID:    rec.PrimaryType,
		CategoryLabel: rec.PrimaryTypeDisplayName,
	}
	if c.CategoryID == "" && !active.IsAll() {
		c.CategoryID = active.ID
		c.CategoryLabel = active.Label
	}
	if c.MapsURL == "" {
		c.MapsURL = "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(rec.Name) + "&query_place_id=" + url.QueryEscape(rec.ID)
	}
	return c
}
