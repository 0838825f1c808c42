package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/sells-group/partner-finder/internal/metrics"
)

// Job states.
const (
	JobRunning    = "running"
	JobDescribing = "describing"
	JobDone       = "done"
	JobFailed     = "failed"
	JobCanceled   = "canceled"
)

// Job is one asynchronous search run.
type Job struct {
	mu        sync.Mutex
	id        string
	status    string
	accepted  int
	target    int
	result    *SearchResponse
	errMsg    string
	createdAt time.Time
	updatedAt time.Time
	cancel    context.CancelFunc
}

// JobView is the JSON snapshot of a job.
type JobView struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Accepted  int             `json:"accepted"`
	Target    int             `json:"target"`
	Error     string          `json:"error,omitempty"`
	Result    *SearchResponse `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Progress matches discovery.Progress and records the counters.
func (j *Job) Progress(accepted, target int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.accepted = accepted
	j.target = target
	j.updatedAt = time.Now()
}

func (j *Job) setStatus(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.updatedAt = time.Now()
}

func (j *Job) finish(status string, res *SearchResponse, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.result = res
	if res != nil {
		j.accepted = res.Count
	}
	if err != nil {
		j.errMsg = err.Error()
	}
	j.updatedAt = time.Now()
}

// View returns a consistent snapshot.
func (j *Job) View() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobView{
		ID:        j.id,
		Status:    j.status,
		Accepted:  j.accepted,
		Target:    j.target,
		Error:     j.errMsg,
		Result:    j.result,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
}

func (j *Job) active() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status == JobRunning || j.status == JobDescribing
}

// JobStore keeps jobs in memory until their TTL expires. An expiring job
// that is still running is canceled.
type JobStore struct {
	jobs *cache.Cache
}

// NewJobStore creates a store whose entries live for ttl.
func NewJobStore(ttl time.Duration) *JobStore {
	c := cache.New(ttl, ttl/2+time.Second)
	c.OnEvicted(func(_ string, v any) {
		if j, ok := v.(*Job); ok && j.active() {
			j.cancel()
		}
	})
	return &JobStore{jobs: c}
}

// Create registers a new running job derived from parent.
func (s *JobStore) Create(parent context.Context, target int) (*Job, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()
	j := &Job{
		id:        uuid.NewString(),
		status:    JobRunning,
		target:    target,
		createdAt: now,
		updatedAt: now,
		cancel:    cancel,
	}
	s.jobs.SetDefault(j.id, j)
	metrics.JobsActive.Inc()
	return j, ctx
}

// Get returns a job by id.
func (s *JobStore) Get(id string) (*Job, bool) {
	v, ok := s.jobs.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Job), true
}

// Cancel stops a running job. It reports false for unknown ids.
func (s *JobStore) Cancel(id string) bool {
	j, ok := s.Get(id)
	if !ok {
		return false
	}
	j.cancel()
	return true
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	return s.jobs.ItemCount()
}
