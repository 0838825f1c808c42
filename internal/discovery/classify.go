package discovery

import (
	"strings"

	"github.com/sells-group/partner-finder/internal/model"
)

// OtherActivity is the label for a record nothing else could classify.
const OtherActivity = "Autre"

// KeywordBonus is added to a type's weight when one of its keywords appears
// in the business name.
const KeywordBonus = 5

// TypeWeight is one entry of the fallback classification table.
type TypeWeight struct {
	Type     string
	Weight   int
	Label    string
	Keywords []string
}

// typeWeights is ordered: on equal scores the earlier entry wins.
var typeWeights = []TypeWeight{
	{"plumber", 10, "Plombier", []string{"plomb", "chauffag", "sanitaire"}},
	{"electrician", 10, "Électricien", []string{"electri"}},
	{"physiotherapist", 10, "Kinésithérapeute", []string{"kine", "physio"}},
	{"dentist", 9, "Dentiste", []string{"dentaire", "dentiste", "orthodont"}},
	{"lawyer", 9, "Avocat", []string{"avocat", "cabinet juridique"}},
	{"accounting", 9, "Expert-comptable", []string{"compta", "expertise comptable"}},
	{"real_estate_agency", 9, "Agence immobilière", []string{"immo"}},
	{"insurance_agency", 8, "Agence d'assurance", []string{"assur"}},
	{"veterinary_care", 8, "Vétérinaire", []string{"veterinaire", "clinique veterinaire"}},
	{"locksmith", 8, "Serrurier", []string{"serrur"}},
	{"painter", 8, "Peintre", []string{"peinture", "peintre"}},
	{"roofing_contractor", 8, "Couvreur", []string{"couvreur", "couverture", "toiture"}},
	{"moving_company", 8, "Déménageur", []string{"demenag"}},
	{"hair_salon", 8, "Coiffeur", []string{"coiff", "barbier"}},
	{"florist", 8, "Fleuriste", []string{"fleur"}},
	{"beauty_salon", 7, "Institut de beauté", []string{"beaute", "esthetique", "onglerie"}},
	{"car_repair", 7, "Garage automobile", []string{"garage", "carrosserie", "mecanique"}},
	{"catering_service", 7, "Traiteur", []string{"traiteur"}},
	{"doctor", 7, "Médecin", []string{"medecin", "cabinet medical"}},
	{"pharmacy", 7, "Pharmacie", []string{"pharmacie"}},
	{"general_contractor", 6, "Entreprise du bâtiment", []string{"batiment", "renovation", "maconnerie"}},
	{"gym", 6, "Salle de sport", []string{"fitness", "gym", "crossfit"}},
	{"spa", 6, "Spa", []string{"hammam", "balneo"}},
	{"travel_agency", 5, "Agence de voyages", []string{"voyage"}},
	{"finance", 5, "Conseil financier", []string{"patrimoine", "financ"}},
	{"bakery", 5, "Boulangerie", []string{"boulang", "patisserie"}},
	{"bank", 4, "Banque", []string{"banque"}},
	{"restaurant", 4, "Restaurant", []string{"restaurant", "bistro", "brasserie"}},
	{"cafe", 4, "Café", []string{"cafe", "coffee"}},
	{"school", 3, "Établissement d'enseignement", []string{"ecole", "formation"}},
	{"lodging", 3, "Hébergement", []string{"hotel", "gite", "chambre d'hote"}},
	{"furniture_store", 3, "Magasin de meubles", []string{"meuble"}},
	{"home_goods_store", 3, "Magasin de décoration", []string{"deco"}},
	{"hardware_store", 3, "Quincaillerie", []string{"quincaill"}},
	{"bar", 3, "Bar", []string{"bar a ", "pub"}},
	{"store", 2, "Commerce", []string{"boutique", "magasin"}},
}

// TypeWeights returns a copy of the fallback table, in tie-break order.
func TypeWeights() []TypeWeight {
	out := make([]TypeWeight, len(typeWeights))
	copy(out, typeWeights)
	return out
}

// Classify returns the activity label for rec. The provider's curated
// display name wins, then the active category's label, then the best-scoring
// provider type from the weight table.
func Classify(rec model.PlaceRecord, active *model.SelectedType) string {
	if label := strings.TrimSpace(rec.PrimaryTypeDisplayName); label != "" {
		return label
	}
	if !active.IsAll() && active.Label != "" {
		return active.Label
	}
	if tw, ok := bestType(rec); ok {
		return tw.Label
	}
	return OtherActivity
}

func bestType(rec model.PlaceRecord) (TypeWeight, bool) {
	if len(rec.Types) == 0 {
		return TypeWeight{}, false
	}
	counts := make(map[string]int, len(rec.Types))
	for _, t := range rec.Types {
		counts[t]++
	}
	name := fold(rec.Name)

	var (
		best      TypeWeight
		bestScore int
	)
	for _, tw := range typeWeights {
		n := counts[tw.Type]
		if n == 0 {
			continue
		}
		score := tw.Weight * n
		if containsAny(name, tw.Keywords) {
			score += KeywordBonus
		}
		if score > bestScore {
			best, bestScore = tw, score
		}
	}
	return best, bestScore > 0
}
