package discovery

import (
	"strings"
	"sync"

	"github.com/sells-group/partner-finder/internal/model"
)

// CompositeKey is the name+address key two listings of one business share.
func CompositeKey(name, address string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(address))
}

// Deduplicator remembers the identifiers and composite keys admitted during
// one run. Admission is an atomic check-and-set.
type Deduplicator struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	keys map[string]struct{}
}

// NewDeduplicator creates an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		ids:  make(map[string]struct{}),
		keys: make(map[string]struct{}),
	}
}

// Admit records the candidate and returns true, or returns false without
// recording anything when its id or composite key was already admitted.
func (d *Deduplicator) Admit(id, name, address string) bool {
	key := CompositeKey(name, address)

	d.mu.Lock()
	defer d.mu.Unlock()

	if id != "" {
		if _, ok := d.ids[id]; ok {
			return false
		}
	}
	if _, ok := d.keys[key]; ok {
		return false
	}
	if id != "" {
		d.ids[id] = struct{}{}
	}
	d.keys[key] = struct{}{}
	return true
}

// SeenID reports whether id was admitted.
func (d *Deduplicator) SeenID(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ids[id]
	return ok
}

// Len returns the number of admitted candidates.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.keys)
}

// DedupCandidates drops later candidates whose composite key repeats an
// earlier one, keeping order.
func DedupCandidates(in []model.BusinessCandidate) []model.BusinessCandidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.BusinessCandidate, 0, len(in))
	for _, c := range in {
		key := CompositeKey(c.Name, c.Address)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
