package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrConversionFailed wraps any failure of the external office engine.
var ErrConversionFailed = errors.New("document conversion failed")

// Engine turns a legacy office document into PDF bytes.
type Engine interface {
	ToPDF(ctx context.Context, data []byte, filename string) ([]byte, error)
}

// Converter normalises uploads into a format the extraction model accepts.
type Converter struct {
	engine Engine
}

func New(engine Engine) *Converter {
	return &Converter{engine: engine}
}

var (
	canonical = map[string]bool{".pdf": true, ".docx": true}
	legacy    = map[string]bool{".doc": true, ".rtf": true, ".odt": true}
)

// Supported reports whether filename has an extension Convert can handle.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return canonical[ext] || legacy[ext]
}

// Canonical reports whether filename is already PDF or DOCX.
func Canonical(filename string) bool {
	return canonical[strings.ToLower(filepath.Ext(filename))]
}

// Convert returns PDF or DOCX bytes for filename.
//
// PDF and DOCX input is returned unchanged. DOC, RTF and ODT are rendered to
// PDF by the engine. Any other extension yields nil with no error, meaning
// "no conversion applies".
func (c *Converter) Convert(ctx context.Context, data []byte, filename string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case canonical[ext]:
		return data, nil
	case legacy[ext]:
	default:
		return nil, nil
	}

	if c.engine == nil {
		return nil, fmt.Errorf("%w: no conversion engine configured for %s", ErrConversionFailed, ext)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrConversionFailed, filename)
	}

	out, err := c.engine.ToPDF(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		return nil, fmt.Errorf("%w: engine output for %s is not a PDF", ErrConversionFailed, filename)
	}
	return out, nil
}

// PDFName swaps the extension of filename for .pdf.
func PDFName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".pdf"
}
