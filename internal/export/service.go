package export

import (
	"context"
	"fmt"
	"unicode"
)

type converter func(ctx context.Context, html string) ([]byte, error)

// Service renders drafts to HTML and converts the page with headless Chrome or pandoc.
type Service struct {
	pdf  converter
	docx converter
}

func NewService() *Service {
	return &Service{pdf: printPDF, docx: convertDOCX}
}

func (s *Service) Export(ctx context.Context, doc Document, format Format) (*Result, error) {
	var (
		convert  converter
		mimeType string
	)
	switch format {
	case FormatPDF:
		convert, mimeType = s.pdf, "application/pdf"
	case FormatDOCX:
		convert, mimeType = s.docx, DOCXMimeType
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	html, err := renderDocument(doc)
	if err != nil {
		return nil, err
	}
	data, err := convert(ctx, html)
	if err != nil {
		return nil, err
	}

	title := doc.Title
	if title == "" {
		title = doc.DocType
	}
	return &Result{
		Data:     data,
		Filename: fileStem(title) + "." + string(format),
		MimeType: mimeType,
	}, nil
}

// fileStem keeps letters (Hangul included) and digits, turns spaces into dashes and caps
// the result at 50 runes.
func fileStem(title string) string {
	stem := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			stem = append(stem, r)
		case r == ' ':
			stem = append(stem, '-')
		}
	}
	if len(stem) > 50 {
		stem = stem[:50]
	}
	if len(stem) == 0 {
		return "document"
	}
	return string(stem)
}
