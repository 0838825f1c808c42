package discovery

import (
	"strings"

	"github.com/sells-group/partner-finder/internal/model"
)

// Rejection reason codes, in rule order.
const (
	ReasonOwnName          = "own_name"
	ReasonExcludedID       = "excluded_id"
	ReasonChain            = "chain"
	ReasonNonService       = "non_service"
	ReasonCategoryMismatch = "category_mismatch"
	ReasonDuplicate        = "duplicate"
)

// chainNames are national and international chains that never make useful
// referral partners.
var chainNames = foldAll([]string{
	"mcdonald", "burger king", "kfc", "quick", "subway", "domino's", "pizza hut",
	"starbucks", "carrefour", "leclerc", "auchan", "intermarché", "super u",
	"lidl", "monoprix", "franprix", "casino supermarché",
	"ikea", "decathlon", "leroy merlin", "castorama", "brico dépôt",
	"darty", "fnac", "gifi", "bureau de poste",
	"boutique orange", "espace sfr", "bouygues telecom", "free center",
	"sephora", "marionnaud", "yves rocher", "basic-fit", "fitness park",
	"norauto", "speedy", "midas", "feu vert",
	"crédit agricole", "bnp paribas", "société générale", "lcl",
	"caisse d'épargne", "banque populaire", "la banque postale",
})

// nonServiceKeywords mark automated or unattended locations.
var nonServiceKeywords = foldAll([]string{
	"photomaton", "photo booth", "cabine photo",
	"distributeur automatique", "distributeur de billets", "distributeur de pain",
	"distributeur de pizza", "guichet automatique", "cash machine",
	"parking", "péage", "aire de repos",
	"borne de recharge", "station de recharge", "station de lavage",
	"laverie automatique", "relais colis", "point relais", "consigne automatique",
	"amazon locker", "pickup station", "casier",
})

// Filter applies the rejection rules for one run. It is read-only after
// construction and safe for concurrent use.
type Filter struct {
	ownName  string
	excluded map[string]struct{}
	category []string
}

// NewFilter builds a filter. ownName may be empty; active may be nil.
func NewFilter(ownName string, excludedIDs []string, active *model.SelectedType) *Filter {
	f := &Filter{
		ownName:  fold(ownName),
		excluded: make(map[string]struct{}, len(excludedIDs)),
	}
	for _, id := range excludedIDs {
		if id = strings.TrimSpace(id); id != "" {
			f.excluded[id] = struct{}{}
		}
	}
	if !active.IsAll() {
		f.category = foldAll(active.Exclude)
	}
	return f
}

// Reject reports whether rec fails a rule, and which one.
func (f *Filter) Reject(rec model.PlaceRecord) (bool, string) {
	name := fold(rec.Name)

	if f.ownName != "" && strings.Contains(name, f.ownName) {
		return true, ReasonOwnName
	}
	if _, ok := f.excluded[rec.ID]; ok {
		return true, ReasonExcludedID
	}
	if containsAny(name, chainNames) {
		return true, ReasonChain
	}
	if containsAny(name, nonServiceKeywords) {
		return true, ReasonNonService
	}
	if len(f.category) > 0 && containsAny(name, f.category) {
		return true, ReasonCategoryMismatch
	}
	return false, ""
}

// Apply returns the records that pass every rule, in input order.
func (f *Filter) Apply(records []model.PlaceRecord) []model.PlaceRecord {
	out, _ := f.apply(records)
	return out
}

func (f *Filter) apply(records []model.PlaceRecord) ([]model.PlaceRecord, map[string]int) {
	out := make([]model.PlaceRecord, 0, len(records))
	var reasons map[string]int
	for _, rec := range records {
		if rejected, reason := f.Reject(rec); rejected {
			if reasons == nil {
				reasons = make(map[string]int)
			}
			reasons[reason]++
			continue
		}
		out = append(out, rec)
	}
	return out, reasons
}
