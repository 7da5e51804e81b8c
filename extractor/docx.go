package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCX is the parsed body of word/document.xml, reduced to what the service
// renders: paragraph styles and run formatting.
type DOCX struct {
	Paragraphs []Paragraph
}

type Paragraph struct {
	Style string
	Runs  []Run
}

type Run struct {
	Text   string
	Bold   bool
	Italic bool
}

// Heading returns the heading level of the paragraph (1-6) or 0.
func (p Paragraph) Heading() int {
	style := strings.ToLower(strings.ReplaceAll(p.Style, " ", ""))
	if style == "title" {
		return 1
	}
	if strings.HasPrefix(style, "heading") && len(style) == len("heading")+1 {
		if lvl := int(style[len(style)-1] - '0'); lvl >= 1 && lvl <= 6 {
			return lvl
		}
	}
	return 0
}

// Text concatenates the runs of the paragraph.
func (p Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

type xmlToggle struct {
	Val string `xml:"val,attr"`
}

func (t *xmlToggle) on() bool {
	if t == nil {
		return false
	}
	switch strings.ToLower(t.Val) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

type xmlRun struct {
	Props struct {
		Bold   *xmlToggle `xml:"b"`
		Italic *xmlToggle `xml:"i"`
	} `xml:"rPr"`
	Texts []string   `xml:"t"`
	Tabs  []struct{} `xml:"tab"`
	Break []struct{} `xml:"br"`
}

type xmlParagraph struct {
	Props struct {
		Style xmlToggle `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []xmlRun `xml:"r"`
}

type xmlDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    struct {
		Paragraphs []xmlParagraph `xml:"p"`
	} `xml:"body"`
}

// ReadDOCX parses the main document part of a DOCX archive.
func ReadDOCX(data []byte) (*DOCX, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read DOCX as ZIP: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return nil, fmt.Errorf("document.xml not found in DOCX")
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read document.xml: %w", err)
	}

	var doc xmlDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document.xml: %w", err)
	}

	out := &DOCX{Paragraphs: make([]Paragraph, 0, len(doc.Body.Paragraphs))}
	for _, p := range doc.Body.Paragraphs {
		para := Paragraph{Style: p.Props.Style.Val}
		for _, r := range p.Runs {
			text := strings.Join(r.Texts, "")
			if len(r.Tabs) > 0 {
				text += strings.Repeat("\t", len(r.Tabs))
			}
			if text == "" {
				continue
			}
			para.Runs = append(para.Runs, Run{
				Text:   text,
				Bold:   r.Props.Bold.on(),
				Italic: r.Props.Italic.on(),
			})
		}
		out.Paragraphs = append(out.Paragraphs, para)
	}
	return out, nil
}

// ExtractDOCXText returns the document text with one line per paragraph.
func ExtractDOCXText(data []byte) (string, error) {
	doc, err := ReadDOCX(data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, p := range doc.Paragraphs {
		sb.WriteString(p.Text())
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no text could be extracted from DOCX")
	}
	return text, nil
}
