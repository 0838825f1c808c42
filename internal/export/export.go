// Package export renders search results as JSON or XLSX documents.
package export

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/partner-finder/internal/model"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// SheetName is the worksheet holding the results.
const SheetName = "Partenaires"

// Document is the exported result set.
type Document struct {
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
	Results     []Row     `json:"results"`
}

// Row is one exported candidate.
type Row struct {
	Name        string          `json:"nom"`
	Activity    string          `json:"activite"`
	Address     string          `json:"adresse"`
	Phone       string          `json:"telephone"`
	Website     string          `json:"site_web"`
	MapsURL     string          `json:"lien_maps"`
	Description *RowDescription `json:"description,omitempty"`
}

// RowDescription is the exported AI copy.
type RowDescription struct {
	Short    string   `json:"courte"`
	Long     string   `json:"longue"`
	Services []string `json:"services,omitempty"`
}

// NewDocument converts candidates into an export document.
func NewDocument(cands []model.BusinessCandidate, now time.Time) Document {
	rows := make([]Row, len(cands))
	for i, c := range cands {
		rows[i] = Row{
			Name:     c.Name,
			Activity: c.Activity,
			Address:  c.Address,
			Phone:    model.OrNotAvailable(c.Phone),
			Website:  model.OrNotAvailable(c.Website),
			MapsURL:  c.MapsURL,
		}
		if c.Description != nil {
			rows[i].Description = &RowDescription{
				Short:    c.Description.Short,
				Long:     c.Description.Long,
				Services: c.Description.Services,
			}
		}
	}
	return Document{GeneratedAt: now.UTC(), Count: len(rows), Results: rows}
}

// ContentType returns the MIME type of format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// Write renders doc in format to w.
func Write(w io.Writer, doc Document, format string) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return WriteJSON(w, doc)
	case FormatXLSX:
		return WriteXLSX(w, doc)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteJSON renders doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

var columns = []string{
	"Nom", "Activité", "Adresse", "Téléphone", "Site web", "Lien Maps",
	"Description courte", "Description longue", "Services",
}

// WriteXLSX renders doc as a single-sheet workbook.
func WriteXLSX(w io.Writer, doc Document) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addRow(sheet, columns)
	for _, r := range doc.Results {
		var short, long, services string
		if r.Description != nil {
			short = r.Description.Short
			long = r.Description.Long
			services = strings.Join(r.Description.Services, ", ")
		}
		addRow(sheet, []string{r.Name, r.Activity, r.Address, r.Phone, r.Website, r.MapsURL, short, long, services})
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
