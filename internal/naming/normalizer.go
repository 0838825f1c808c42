package naming

import (
	"context"
	"strings"
)

// Normalizer cleans listing names and, when a Recoverer is set, prefers the
// name found on the business website.
type Normalizer struct {
	Recoverer *Recoverer
}

// Normalize returns the display name for a business.
func (n *Normalizer) Normalize(ctx context.Context, name, website string) string {
	cleaned := Clean(name)
	if n == nil || n.Recoverer == nil || strings.TrimSpace(website) == "" {
		return cleaned
	}
	if recovered, ok := n.Recoverer.Recover(ctx, cleaned, website); ok {
		return recovered
	}
	return cleaned
}
