// Package places adapts the external places service to the search pipeline.
// Every call returns a typed outcome so the caller decides between
// continuing, skipping and aborting without inspecting error strings.
package places

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/partner-finder/internal/model"
)

var (
	// ErrLocationNotFound is returned when the starting location reference
	// does not resolve to coordinates.
	ErrLocationNotFound = eris.New("places: location not found")
	// ErrCredentials is returned when the provider rejects the API key.
	ErrCredentials = eris.New("places: provider credentials rejected")
)

// Outcome classifies the result of one provider call.
type Outcome int

const (
	// OK means the call succeeded.
	OK Outcome = iota
	// Skip means this call failed but the run can go on without it.
	Skip
	// Fatal means the run cannot continue.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Skip:
		return "skip"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// SearchQuery is one proximity text search.
type SearchQuery struct {
	Text       string
	Center     model.Location
	RadiusM    float64
	MaxResults int
	// Type restricts results to a provider place type when set.
	Type string
}

// SearchResult is the typed outcome of a text search.
type SearchResult struct {
	Records []model.PlaceRecord
	Outcome Outcome
	Err     error
}

// DetailResult is the typed outcome of a details lookup. Record is nil when
// Outcome is not OK.
type DetailResult struct {
	Record  *model.PlaceRecord
	Outcome Outcome
	Err     error
}

// Provider is the narrow view of the places service the pipeline uses.
type Provider interface {
	// ResolveLocation turns a place identifier or address into coordinates.
	// It fails with ErrLocationNotFound or ErrCredentials.
	ResolveLocation(ctx context.Context, ref model.LocationRef) (*model.ResolvedLocation, error)
	// TextSearch returns provider-ranked records near the query center.
	TextSearch(ctx context.Context, q SearchQuery) SearchResult
	// PlaceDetails fetches the full record for id. An unknown id is a Skip.
	PlaceDetails(ctx context.Context, id string) DetailResult
}

// IsFatal reports whether err must abort a run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCredentials) || errors.Is(err, ErrLocationNotFound)
}
