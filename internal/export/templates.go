package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentTemplate = template.Must(
	template.New("document.html").Funcs(template.FuncMap{
		"koreanDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006. 1. 2.")
		},
	}).ParseFS(templateFS, "templates/document.html"),
)

// documentPage is what templates/document.html sees.
type documentPage struct {
	Title       string
	CaseType    string
	DocType     string
	ContentHTML template.HTML
	UpdatedAt   time.Time
	RedlineHTML template.HTML
}

// renderDocument lays the draft out as a printable HTML page. Redline is trusted HTML
// produced by diff.Redline.
func renderDocument(doc Document) (string, error) {
	page := documentPage{
		Title:       doc.Title,
		CaseType:    doc.CaseType,
		DocType:     doc.DocType,
		ContentHTML: DraftToHTML(doc.Content),
		UpdatedAt:   doc.UpdatedAt,
		RedlineHTML: template.HTML(doc.Redline),
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return buf.String(), nil
}
