// Package export renders drafts to PDF and DOCX and fills DOCX templates.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

const DOCXMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func ParseFormat(raw string) (Format, bool) {
	switch Format(raw) {
	case FormatPDF:
		return FormatPDF, true
	case FormatDOCX, "":
		return FormatDOCX, true
	default:
		return "", false
	}
}

// Document is a draft prepared for export
type Document struct {
	Title     string
	CaseType  string
	DocType   string
	Content   string
	UpdatedAt time.Time
	// Redline, when set, renders a tracked-changes section after the body.
	Redline string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrInvalidTemplate indicates the supplied bytes are not a DOCX archive.
	ErrInvalidTemplate = errors.New("invalid docx template")
)
