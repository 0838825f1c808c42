package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/partner-finder/internal/discovery"
	"github.com/sells-group/partner-finder/internal/export"
	"github.com/sells-group/partner-finder/internal/metrics"
	"github.com/sells-group/partner-finder/internal/model"
	"github.com/sells-group/partner-finder/internal/places"
)

const maxBodyBytes = 1 << 20

// SearchRequest is the body of POST /api/search and POST /api/jobs.
type SearchRequest struct {
	CompanyName string   `json:"company_name"`
	Address     string   `json:"address"`
	PlaceID     string   `json:"place_id"`
	MaxResults  int      `json:"max_results"`
	Types       []string `json:"types"`
	ExcludedIDs []string `json:"excluded_ids"`
	Describe    bool     `json:"describe"`
}

// SearchResponse is the result of a search.
type SearchResponse struct {
	RunID          string                    `json:"run_id"`
	Locality       string                    `json:"locality"`
	Origin         model.ResolvedLocation    `json:"origin"`
	Count          int                       `json:"count"`
	Results        []model.BusinessCandidate `json:"results"`
	Radii          []float64                 `json:"radii"`
	FinalRadius    float64                   `json:"final_radius_m"`
	CeilingReached bool                      `json:"ceiling_reached"`
	Stats          discovery.RunStats        `json:"stats"`
}

func newSearchResponse(res *discovery.Result) *SearchResponse {
	if res == nil {
		return nil
	}
	results := res.Candidates
	if results == nil {
		results = []model.BusinessCandidate{}
	}
	return &SearchResponse{
		RunID:          res.RunID,
		Locality:       res.Locality,
		Origin:         res.Origin,
		Count:          len(results),
		Results:        results,
		Radii:          res.Radii,
		FinalRadius:    res.FinalRadius(),
		CeilingReached: res.CeilingReached,
		Stats:          res.Stats,
	}
}

type errorResponse struct {
	Error  string          `json:"error"`
	Result *SearchResponse `json:"result,omitempty"`
}

type describeRequest struct {
	Candidates []model.BusinessCandidate `json:"candidates"`
}

type describeResponse struct {
	Count   int                       `json:"count"`
	Results []model.BusinessCandidate `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Types())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := s.toDiscovery(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.searcher.Search(r.Context(), req, nil)
	resp := newSearchResponse(res)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Result: resp})
		return
	}
	if body.Describe {
		resp.Results = s.describe(r.Context(), resp.Results)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := s.toDiscovery(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	job, ctx := s.jobs.Create(s.baseCtx, req.MaxResults)
	go s.runJob(ctx, job, req, body.Describe)

	w.Header().Set("Location", "/api/jobs/"+job.id)
	writeJSON(w, http.StatusAccepted, job.View())
}

func (s *Server) runJob(ctx context.Context, job *Job, req discovery.Request, describe bool) {
	defer job.cancel()
	defer metrics.JobsActive.Dec()

	log := zap.L().With(zap.String("job_id", job.id))
	res, err := s.searcher.Search(ctx, req, job.Progress)
	resp := newSearchResponse(res)
	if err == nil && describe && s.describer != nil {
		job.setStatus(JobDescribing)
		resp.Results = s.describe(ctx, resp.Results)
		err = ctx.Err()
	}

	switch {
	case err == nil:
		job.finish(JobDone, resp, nil)
		log.Info("api: job done", zap.Int("count", resp.Count))
	case isCanceled(err):
		job.finish(JobCanceled, resp, err)
		log.Info("api: job canceled")
	default:
		job.finish(JobFailed, resp, err)
		log.Warn("api: job failed", zap.Error(err))
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, eris.New("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job.View())
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.jobs.Cancel(id) {
		writeError(w, http.StatusNotFound, eris.New("job not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, eris.New("job not found"))
		return
	}
	view := job.View()
	if view.Result == nil {
		writeError(w, http.StatusConflict, eris.Errorf("job is %s", view.Status))
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatJSON
	}
	if format != export.FormatJSON && format != export.FormatXLSX {
		writeError(w, http.StatusBadRequest, eris.Errorf("unknown format %q", format))
		return
	}

	doc := export.NewDocument(view.Result.Results, s.now())
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="partenaires-%s.%s"`, view.ID, format))
	if err := export.Write(w, doc, format); err != nil {
		zap.L().Error("api: export failed", zap.String("job_id", view.ID), zap.Error(err))
	}
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	if s.describer == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("descriptions are not configured"))
		return
	}
	var body describeRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body.Candidates) == 0 {
		writeError(w, http.StatusBadRequest, eris.New("candidates is required"))
		return
	}

	out, err := s.describer.DescribeAll(r.Context(), body.Candidates)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, describeResponse{Count: len(out), Results: out})
}

// describe runs the describer when one is configured. Its only error is
// cancellation, which callers check on ctx.
func (s *Server) describe(ctx context.Context, cands []model.BusinessCandidate) []model.BusinessCandidate {
	if s.describer == nil || len(cands) == 0 {
		return cands
	}
	out, err := s.describer.DescribeAll(ctx, cands)
	if err != nil {
		zap.L().Warn("api: describe interrupted", zap.Error(err))
	}
	if out == nil {
		return cands
	}
	return out
}

func (s *Server) toDiscovery(body SearchRequest) (discovery.Request, error) {
	types, err := s.catalog.Resolve(body.Types)
	if err != nil {
		return discovery.Request{}, err
	}
	return discovery.Request{
		CompanyName: strings.TrimSpace(body.CompanyName),
		Location: model.LocationRef{
			PlaceID: strings.TrimSpace(body.PlaceID),
			Address: strings.TrimSpace(body.Address),
		},
		MaxResults:  body.MaxResults,
		Types:       types,
		ExcludedIDs: body.ExcludedIDs,
	}, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, discovery.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, places.ErrLocationNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, places.ErrCredentials):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return eris.Wrap(err, "invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
