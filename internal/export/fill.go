package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// placeholderPattern matches {{ key }} even when Word has split the braces and key across runs.
var (
	placeholderPattern = regexp.MustCompile(`\{(?:<[^>]+>)*\{((?:[^{}<]|<[^>]+>)*?)\}(?:<[^>]+>)*\}`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
)

// FillTemplate replaces {{ key }} placeholders in a DOCX body, headers and footers.
// Keys absent from values render empty.
func FillTemplate(docx []byte, values map[string]string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	var out bytes.Buffer
	writer := zip.NewWriter(&out)
	for _, file := range reader.File {
		if err := copyPart(writer, file, values); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return out.Bytes(), nil
}

func copyPart(writer *zip.Writer, file *zip.File, values map[string]string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer src.Close()

	header := file.FileHeader
	dst, err := writer.CreateHeader(&header)
	if err != nil {
		return fmt.Errorf("create %s: %w", file.Name, err)
	}

	if !isTextPart(file.Name) {
		if _, err := io.Copy(dst, src); err != nil {
			return fmt.Errorf("copy %s: %w", file.Name, err)
		}
		return nil
	}

	body, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", file.Name, err)
	}
	if _, err := dst.Write(fillXML(body, values)); err != nil {
		return fmt.Errorf("write %s: %w", file.Name, err)
	}
	return nil
}

func isTextPart(name string) bool {
	if !strings.HasPrefix(name, "word/") || !strings.HasSuffix(name, ".xml") {
		return false
	}
	base := strings.TrimSuffix(strings.TrimPrefix(name, "word/"), ".xml")
	return base == "document" || strings.HasPrefix(base, "header") || strings.HasPrefix(base, "footer")
}

func fillXML(body []byte, values map[string]string) []byte {
	return placeholderPattern.ReplaceAllFunc(body, func(match []byte) []byte {
		inner := placeholderPattern.FindSubmatch(match)[1]
		key := strings.TrimSpace(string(tagPattern.ReplaceAll(inner, nil)))
		var escaped bytes.Buffer
		_ = xml.EscapeText(&escaped, []byte(values[key]))
		return escaped.Bytes()
	})
}
