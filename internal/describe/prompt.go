package describe

import (
	"fmt"
	"strings"

	"github.com/sells-group/partner-finder/internal/model"
)

const systemPrompt = `Tu es rédacteur pour un annuaire de partenaires professionnels en France.
Tu écris en français, sur un ton factuel et engageant, sans inventer de chiffres, de labels ni d'années d'expérience.
Tu réponds uniquement par un objet JSON valide, sans texte autour.`

// buildPrompt renders the user prompt for one candidate.
func buildPrompt(c model.BusinessCandidate) string {
	var b strings.Builder
	b.WriteString("Rédige la fiche annuaire de cette entreprise.\n\n")
	fmt.Fprintf(&b, "Nom : %s\n", c.Name)
	fmt.Fprintf(&b, "Activité : %s\n", c.Activity)
	fmt.Fprintf(&b, "Adresse : %s\n", c.Address)
	if c.HasWebsite() {
		fmt.Fprintf(&b, "Site web : %s\n", c.Website)
	}
	b.WriteString(`
Réponds avec ce JSON :
{
  "description_courte": "une phrase de 160 caractères maximum",
  "description_longue": "deux ou trois paragraphes courts",
  "services": ["trois à six services probables"]
}`)
	return b.String()
}
