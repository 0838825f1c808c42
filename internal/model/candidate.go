package model

// NotAvailable replaces a missing phone number or website.
const NotAvailable = "Non disponible"

// AllTypesID is the catalog identifier of the "all types" selection, which
// disables category filtering.
const AllTypesID = "all"

// SelectedType is one user-chosen category.
type SelectedType struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label" yaml:"label"`
	Keyword string `json:"keyword" yaml:"keyword"`
	// ProviderType is passed to the provider as a type filter when set.
	ProviderType string `json:"provider_type,omitempty" yaml:"type"`
	// Exclude lists name keywords that betray a mis-tagged business for this
	// category (a physiotherapist search must not surface plumbers).
	Exclude []string `json:"exclude,omitempty" yaml:"exclude"`
}

// IsAll reports whether t is nil or the "all types" sentinel.
func (t *SelectedType) IsAll() bool {
	return t == nil || t.ID == AllTypesID || t.ID == ""
}

// BusinessCandidate is an accepted, classified partner business.
type BusinessCandidate struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Activity      string       `json:"activity"`
	Address       string       `json:"address"`
	Phone         string       `json:"phone"`
	Website       string       `json:"website"`
	MapsURL       string       `json:"maps_url"`
	CategoryID    string       `json:"category_id,omitempty"`
	CategoryLabel string       `json:"category_label,omitempty"`
	Description   *Description `json:"description,omitempty"`
}

// HasWebsite reports whether the candidate carries a real website URL.
func (c BusinessCandidate) HasWebsite() bool {
	return c.Website != "" && c.Website != NotAvailable
}

// Description is AI-written directory copy for one candidate.
type Description struct {
	Short    string   `json:"short"`
	Long     string   `json:"long"`
	Services []string `json:"services,omitempty"`
}

// OrNotAvailable returns s, or NotAvailable when s is blank.
func OrNotAvailable(s string) string {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			return s
		}
	}
	return NotAvailable
}
