package describe

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/partner-finder/internal/model"
)

const descriptionSchema = `{
  "type": "object",
  "required": ["description_courte", "description_longue"],
  "properties": {
    "description_courte": {"type": "string", "minLength": 1},
    "description_longue": {"type": "string", "minLength": 1},
    "services": {"type": "array", "items": {"type": "string"}}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(descriptionSchema)

type rawDescription struct {
	Short    string   `json:"description_courte"`
	Long     string   `json:"description_longue"`
	Services []string `json:"services"`
}

// extractJSON returns the outermost JSON object in text, ignoring code
// fences and any prose around it.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", eris.New("describe: no JSON object in response")
	}
	return text[start : end+1], nil
}

// parseDescription extracts, validates and decodes a completion.
func parseDescription(text string) (*model.Description, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "describe: invalid JSON")
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return nil, eris.Errorf("describe: schema violation: %s", strings.Join(msgs, "; "))
	}

	var d rawDescription
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, eris.Wrap(err, "describe: decode description")
	}

	services := make([]string, 0, len(d.Services))
	for _, s := range d.Services {
		if s = strings.TrimSpace(s); s != "" {
			services = append(services, s)
		}
	}
	return &model.Description{
		Short:    strings.TrimSpace(d.Short),
		Long:     strings.TrimSpace(d.Long),
		Services: services,
	}, nil
}
