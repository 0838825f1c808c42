// Package discovery turns a place search into a deduplicated, classified list
// of nearby partner businesses. The search loop widens its radius until it
// has collected enough candidates or reaches the configured ceiling.
package discovery

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/partner-finder/internal/model"
)

// ErrInvalidRequest is returned for a request that cannot start a run.
var ErrInvalidRequest = eris.New("discovery: invalid request")

// Request describes one search run.
type Request struct {
	// CompanyName is the caller's own business; matching listings are dropped.
	CompanyName string `json:"company_name"`
	// Location is the starting point of the search.
	Location model.LocationRef `json:"location"`
	// MaxResults is the number of candidates wanted.
	MaxResults int `json:"max_results"`
	// Types is the category selection. Only its first entry is used.
	Types []model.SelectedType `json:"types,omitempty"`
	// ExcludedIDs are provider identifiers never to return, typically
	// results already shown to the user.
	ExcludedIDs []string `json:"excluded_ids,omitempty"`
}

// Validate checks that the request can start a run.
func (r Request) Validate() error {
	if r.MaxResults <= 0 {
		return eris.Wrapf(ErrInvalidRequest, "max_results must be positive, got %d", r.MaxResults)
	}
	if r.Location.IsZero() {
		return eris.Wrap(ErrInvalidRequest, "a place id or an address is required")
	}
	return nil
}

// Progress is called after every accepted candidate. It runs inline on the
// search goroutine and must return quickly.
type Progress func(accepted, target int)

// Result is the outcome of a run.
type Result struct {
	RunID      string                    `json:"run_id"`
	Origin     model.ResolvedLocation    `json:"origin"`
	Locality   string                    `json:"locality"`
	Candidates []model.BusinessCandidate `json:"candidates"`
	// Radii lists the radius of every pass, in order.
	Radii          []float64 `json:"radii"`
	CeilingReached bool      `json:"ceiling_reached"`
	Stats          RunStats  `json:"stats"`
}

// FinalRadius returns the radius of the last pass, or 0 before any pass.
func (r *Result) FinalRadius() float64 {
	if r == nil || len(r.Radii) == 0 {
		return 0
	}
	return r.Radii[len(r.Radii)-1]
}

// RunStats counts what happened during a run.
type RunStats struct {
	Queries       int            `json:"queries"`
	QuerySkips    int            `json:"query_skips"`
	DetailFetches int            `json:"detail_fetches"`
	DetailSkips   int            `json:"detail_skips"`
	Rejected      map[string]int `json:"rejected,omitempty"`
}

func (s *RunStats) reject(reason string, n int) {
	if s.Rejected == nil {
		s.Rejected = make(map[string]int)
	}
	s.Rejected[reason] += n
}
