package export

import (
	"html"
	"html/template"
	"strings"
)

// DraftToHTML turns generated draft text into HTML. Blank lines separate paragraphs,
// "#" prefixes become headings and "- " lines become list items.
func DraftToHTML(text string) template.HTML {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out strings.Builder
	var paragraph []string
	inList := false

	flush := func() {
		if len(paragraph) == 0 {
			return
		}
		out.WriteString("<p>")
		out.WriteString(strings.Join(paragraph, "<br>"))
		out.WriteString("</p>\n")
		paragraph = paragraph[:0]
	}
	closeList := func() {
		if inList {
			out.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
			closeList()
		case strings.HasPrefix(trimmed, "#"):
			flush()
			closeList()
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			if level > 3 {
				level = 3
			}
			heading := html.EscapeString(strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
			tag := string(rune('0' + level))
			out.WriteString("<h" + tag + ">" + heading + "</h" + tag + ">\n")
		case strings.HasPrefix(trimmed, "- "):
			flush()
			if !inList {
				out.WriteString("<ul>\n")
				inList = true
			}
			out.WriteString("<li>" + html.EscapeString(strings.TrimSpace(trimmed[2:])) + "</li>\n")
		default:
			closeList()
			paragraph = append(paragraph, html.EscapeString(trimmed))
		}
	}
	flush()
	closeList()

	return template.HTML(out.String())
}
