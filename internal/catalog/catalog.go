// Package catalog holds the static reference tables: the categories a user
// can pick from and the French department names used to label localities.
package catalog

import (
	_ "embed"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/partner-finder/internal/model"
)

//go:embed categories.yaml
var categoriesYAML []byte

//go:embed departments.yaml
var departmentsYAML []byte

// Catalog is an immutable set of categories plus the department table.
type Catalog struct {
	types       []model.SelectedType
	byID        map[string]int
	departments map[string]string
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog, parsed once per process.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(categoriesYAML)
	})
	return defaultCat, defaultErr
}

// MustDefault is Default for callers that treat a broken embed as a bug.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile reads a category list from path. The department table is always
// the embedded one.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse builds a catalog from a YAML category list.
func Parse(data []byte) (*Catalog, error) {
	var types []model.SelectedType
	if err := yaml.Unmarshal(data, &types); err != nil {
		return nil, eris.Wrap(err, "catalog: parse categories")
	}

	var deps map[string]string
	if err := yaml.Unmarshal(departmentsYAML, &deps); err != nil {
		return nil, eris.Wrap(err, "catalog: parse departments")
	}

	c := &Catalog{
		types:       make([]model.SelectedType, 0, len(types)),
		byID:        make(map[string]int, len(types)),
		departments: deps,
	}
	for _, t := range types {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, eris.New("catalog: category with empty id")
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, eris.Errorf("catalog: duplicate category id %q", t.ID)
		}
		if t.ID != model.AllTypesID && t.Keyword == "" {
			return nil, eris.Errorf("catalog: category %q has no keyword", t.ID)
		}
		c.byID[t.ID] = len(c.types)
		c.types = append(c.types, t)
	}
	return c, nil
}

// Types returns every category in catalog order, "all" included.
func (c *Catalog) Types() []model.SelectedType {
	out := make([]model.SelectedType, len(c.types))
	copy(out, c.types)
	return out
}

// Lookup returns the category with the given id.
func (c *Catalog) Lookup(id string) (model.SelectedType, bool) {
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return model.SelectedType{}, false
	}
	return c.types[i], true
}

// Resolve maps ids to categories, failing on the first unknown one.
func (c *Catalog) Resolve(ids []string) ([]model.SelectedType, error) {
	out := make([]model.SelectedType, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		t, ok := c.Lookup(id)
		if !ok {
			return nil, eris.Errorf("catalog: unknown category %q", id)
		}
		out = append(out, t)
	}
	return out, nil
}

// Primary picks the single active category out of a multi-select list. It
// returns nil when the list is empty or its first entry is "all".
func Primary(types []model.SelectedType) *model.SelectedType {
	if len(types) == 0 {
		return nil
	}
	t := types[0]
	if t.IsAll() {
		return nil
	}
	return &t
}

// DepartmentName returns the department name for a French postal code.
func (c *Catalog) DepartmentName(postalCode string) (string, bool) {
	code := departmentCode(postalCode)
	if code == "" {
		return "", false
	}
	name, ok := c.departments[code]
	return name, ok
}

func departmentCode(postalCode string) string {
	if len(postalCode) != 5 {
		return ""
	}
	for _, r := range postalCode {
		if r < '0' || r > '9' {
			return ""
		}
	}
	switch {
	case strings.HasPrefix(postalCode, "97"):
		return postalCode[:3]
	case strings.HasPrefix(postalCode, "20"):
		n, _ := strconv.Atoi(postalCode)
		if n < 20200 {
			return "2A"
		}
		return "2B"
	default:
		return postalCode[:2]
	}
}

var postalRe = regexp.MustCompile(`\b(\d{5})\b\s*([^,\d][^,]*)?`)

// Locality derives the short place name used in search queries from a
// formatted address: "75011 Paris" when a postal code and city are present,
// the department name when only the postal code is, the address otherwise.
func (c *Catalog) Locality(address string) string {
	address = strings.TrimSpace(address)
	m := postalRe.FindStringSubmatch(address)
	if m == nil {
		return address
	}
	city := strings.TrimSpace(m[2])
	if city != "" && !strings.EqualFold(city, "France") {
		return m[1] + " " + city
	}
	if name, ok := c.DepartmentName(m[1]); ok {
		return name
	}
	return address
}
