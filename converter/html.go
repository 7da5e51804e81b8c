package converter

import (
	"fmt"
	"html"
	"strings"

	"github.com/Itish41/ndareview/extractor"
)

// DocxToHTML renders a DOCX body as simple HTML for the document viewer.
// Headings, paragraphs and bold/italic runs are kept; everything else is
// flattened to text.
func DocxToHTML(data []byte) (string, error) {
	doc, err := extractor.ReadDOCX(data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, p := range doc.Paragraphs {
		if len(p.Runs) == 0 {
			continue
		}
		tag := "p"
		if lvl := p.Heading(); lvl > 0 {
			tag = fmt.Sprintf("h%d", lvl)
		}
		sb.WriteString("<" + tag + ">")
		for _, r := range p.Runs {
			text := html.EscapeString(r.Text)
			if r.Italic {
				text = "<em>" + text + "</em>"
			}
			if r.Bold {
				text = "<strong>" + text + "</strong>"
			}
			sb.WriteString(text)
		}
		sb.WriteString("</" + tag + ">")
	}
	return sb.String(), nil
}
