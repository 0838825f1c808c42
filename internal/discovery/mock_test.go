package discovery

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/partner-finder/internal/model"
	"github.com/sells-group/partner-finder/internal/places"
)

// fakeProvider implements places.Provider for testing. Search results are
// keyed by radius; details are served from a map of full records.
type fakeProvider struct {
	mu sync.Mutex

	origin     *model.ResolvedLocation
	resolveErr error

	byRadius    map[float64][]model.PlaceRecord
	searchFn    func(q places.SearchQuery) places.SearchResult
	details     map[string]model.PlaceRecord
	detailFails map[string]places.DetailResult

	searches    []places.SearchQuery
	detailCalls []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		origin: &model.ResolvedLocation{
			Location:         model.Location{Lat: 48.85, Lng: 2.35},
			FormattedAddress: "1 Place de la République, 75011 Paris, France",
		},
		byRadius:    make(map[float64][]model.PlaceRecord),
		details:     make(map[string]model.PlaceRecord),
		detailFails: make(map[string]places.DetailResult),
	}
}

// add registers rec as a search hit at radius and as a details record.
func (f *fakeProvider) add(radius float64, recs ...model.PlaceRecord) {
	for _, r := range recs {
		f.byRadius[radius] = append(f.byRadius[radius], r)
		if _, ok := f.details[r.ID]; !ok {
			f.details[r.ID] = r
		}
	}
}

func (f *fakeProvider) ResolveLocation(_ context.Context, _ model.LocationRef) (*model.ResolvedLocation, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	loc := *f.origin
	return &loc, nil
}

func (f *fakeProvider) TextSearch(_ context.Context, q places.SearchQuery) places.SearchResult {
	f.mu.Lock()
	f.searches = append(f.searches, q)
	f.mu.Unlock()

	if f.searchFn != nil {
		return f.searchFn(q)
	}
	recs := f.byRadius[q.RadiusM]
	if len(recs) > q.MaxResults {
		recs = recs[:q.MaxResults]
	}
	return places.SearchResult{Records: recs, Outcome: places.OK}
}

func (f *fakeProvider) PlaceDetails(_ context.Context, id string) places.DetailResult {
	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, id)
	f.mu.Unlock()

	if res, ok := f.detailFails[id]; ok {
		return res
	}
	rec, ok := f.details[id]
	if !ok {
		return places.DetailResult{Outcome: places.Skip, Err: eris.Errorf("no details for %s", id)}
	}
	return places.DetailResult{Record: &rec, Outcome: places.OK}
}

func (f *fakeProvider) radii() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, 0, len(f.searches))
	for _, s := range f.searches {
		out = append(out, s.RadiusM)
	}
	return out
}

func (f *fakeProvider) detailCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.detailCalls {
		if c == id {
			n++
		}
	}
	return n
}

// plumberRecord builds a detailed plumber record.
func plumberRecord(id, name, address string) model.PlaceRecord {
	return model.PlaceRecord{
		ID:                     id,
		Name:                   name,
		Address:                address,
		Phone:                  "01 43 00 00 00",
		MapsURL:                "https://maps.google.com/?cid=" + id,
		Types:                  []string{"plumber", "point_of_interest"},
		PrimaryType:            "plumber",
		PrimaryTypeDisplayName: "Plombier",
	}
}

var plumberType = model.SelectedType{
	ID:           "plombier",
	Label:        "Plombier",
	Keyword:      "plombier",
	ProviderType: "plumber",
	Exclude:      []string{"électricien"},
}
