package discovery

import (
	"strings"

	"github.com/sells-group/partner-finder/internal/model"
)

// Query is one text search issued on every radius pass.
type Query struct {
	Text string
	// Type is the provider type filter, empty for none.
	Type string
}

// BuildQueries derives the text queries for a run: the category keyword plus
// locality when a category is active, the generic term plus locality
// otherwise.
func BuildQueries(active *model.SelectedType, genericTerm, locality string) []Query {
	locality = strings.TrimSpace(locality)
	if active.IsAll() {
		return []Query{{Text: joinNonEmpty(genericTerm, locality)}}
	}
	keyword := active.Keyword
	if keyword == "" {
		keyword = active.Label
	}
	return []Query{{
		Text: joinNonEmpty(keyword, locality),
		Type: active.ProviderType,
	}}
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
