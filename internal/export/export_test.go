package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestDraftToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "paragraphs split on blank lines",
			input:    "첫째 문단\n\n둘째 문단",
			expected: "<p>첫째 문단</p>\n<p>둘째 문단</p>",
		},
		{
			name:     "line breaks inside paragraph",
			input:    "원고 홍길동\n피고 김철수",
			expected: "<p>원고 홍길동<br>피고 김철수</p>",
		},
		{
			name:     "heading levels",
			input:    "# 소장\n## 청구취지",
			expected: "<h1>소장</h1>\n<h2>청구취지</h2>",
		},
		{
			name:     "bullet list",
			input:    "- 갑 제1호증\n- 갑 제2호증",
			expected: "<ul>\n<li>갑 제1호증</li>\n<li>갑 제2호증</li>\n</ul>",
		},
		{
			name:     "escapes markup",
			input:    "<script>alert(1)</script>",
			expected: "&lt;script&gt;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strings.TrimSpace(string(DraftToHTML(tt.input)))
			if !strings.Contains(result, tt.expected) {
				t.Errorf("DraftToHTML() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Document v1.2", "My-Document-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"손해배상 청구 소장", "손해배상-청구-소장"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := fileStem(tt.input); got != tt.expected {
				t.Errorf("fileStem(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHTMLDataURLRoundTrips(t *testing.T) {
	page := "<p>원고 김민수 + 피고</p>"
	url := htmlDataURL(page)
	const prefix = "data:text/html;charset=utf-8;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("unexpected data url %q", url)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != page {
		t.Fatalf("round trip = %q, want %q", decoded, page)
	}
}

func TestRenderDocument(t *testing.T) {
	html, err := renderDocument(Document{
		Title:     "손해배상 청구의 소",
		CaseType:  "민사",
		DocType:   "소장",
		Content:   "청구취지\n\n피고는 원고에게 금 1,000,000원을 지급하라.",
		UpdatedAt: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		Redline:   `<del>1,000</del><ins>2,000</ins>`,
	})
	if err != nil {
		t.Fatalf("renderDocument() error = %v", err)
	}

	for _, want := range []string{"손해배상 청구의 소", "민사", "2026. 3. 4.", "<p>청구취지</p>", "<del>1,000</del>", "변경 내역"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "&lt;p&gt;") {
		t.Error("draft body was escaped instead of rendered")
	}
}

func TestRenderDocumentWithoutRedline(t *testing.T) {
	html, err := renderDocument(Document{DocType: "답변서", Content: "본문"})
	if err != nil {
		t.Fatalf("renderDocument() error = %v", err)
	}
	if strings.Contains(html, "변경 내역") {
		t.Error("redline section rendered without redline")
	}
	if !strings.Contains(html, "답변서") {
		t.Error("expected doc type as fallback title")
	}
}

func TestExportDispatchesByFormat(t *testing.T) {
	var gotFormat, gotHTML string
	fake := func(name string) converter {
		return func(_ context.Context, html string) ([]byte, error) {
			gotFormat, gotHTML = name, html
			return []byte(name), nil
		}
	}
	svc := &Service{pdf: fake("pdf"), docx: fake("docx")}

	result, err := svc.Export(context.Background(), Document{DocType: "소장", Content: "본문"}, FormatPDF)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if gotFormat != "pdf" || result.Filename != "소장.pdf" || result.MimeType != "application/pdf" {
		t.Fatalf("unexpected dispatch: format=%s file=%s mime=%s", gotFormat, result.Filename, result.MimeType)
	}
	if !strings.Contains(gotHTML, "<p>본문</p>") {
		t.Fatalf("converter did not receive rendered html: %s", gotHTML)
	}

	result, err = svc.Export(context.Background(), Document{Title: "준비 서면"}, FormatDOCX)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "준비-서면.docx" || result.MimeType != DOCXMimeType {
		t.Fatalf("unexpected docx result %+v", result)
	}

	if _, err := svc.Export(context.Background(), Document{}, Format("rtf")); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestParseFormat(t *testing.T) {
	if f, ok := ParseFormat(""); !ok || f != FormatDOCX {
		t.Fatalf("empty format should default to docx, got %q %v", f, ok)
	}
	if _, ok := ParseFormat("odt"); ok {
		t.Fatal("odt should be rejected")
	}
}

func buildDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range parts {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func readPart(t *testing.T, docx []byte, name string) string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		body, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(body)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestFillTemplate(t *testing.T) {
	docx := buildDocx(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   `<w:p><w:r><w:t>원고: {{ plaintiff }}</w:t></w:r><w:r><w:t>{{</w:t></w:r><w:r><w:t>amount</w:t></w:r><w:r><w:t>}}</w:t></w:r><w:r><w:t>{{missing}}</w:t></w:r></w:p>`,
		"word/header1.xml":    `<w:t>{{court}}</w:t>`,
		"word/styles.xml":     `<w:t>{{plaintiff}}</w:t>`,
	})

	filled, err := FillTemplate(docx, map[string]string{
		"plaintiff": "홍길동 & 김철수",
		"amount":    "1,000,000원",
		"court":     "서울중앙지방법원",
	})
	if err != nil {
		t.Fatalf("FillTemplate() error = %v", err)
	}

	body := readPart(t, filled, "word/document.xml")
	if !strings.Contains(body, "원고: 홍길동 &amp; 김철수") {
		t.Errorf("plaintiff not filled: %s", body)
	}
	if !strings.Contains(body, "1,000,000원") {
		t.Errorf("split-run placeholder not filled: %s", body)
	}
	if strings.Contains(body, "{{") || strings.Contains(body, "missing") {
		t.Errorf("placeholders left behind: %s", body)
	}
	if got := readPart(t, filled, "word/header1.xml"); got != "<w:t>서울중앙지방법원</w:t>" {
		t.Errorf("header not filled: %s", got)
	}
	if got := readPart(t, filled, "word/styles.xml"); got != "<w:t>{{plaintiff}}</w:t>" {
		t.Errorf("non-text part was modified: %s", got)
	}
}

func TestFillTemplateRejectsNonZip(t *testing.T) {
	_, err := FillTemplate([]byte("not a docx"), nil)
	if !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("expected ErrInvalidTemplate, got %v", err)
	}
}
