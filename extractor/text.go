package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ExtractPlainText decodes a text upload, honouring UTF-8/UTF-16 BOMs and
// falling back to Windows-1252 for legacy encodings.
func ExtractPlainText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty text file")
	}

	text, err := decodeText(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text file: %w", err)
	}

	text = normalizeText(text)
	if text == "" {
		return "", fmt.Errorf("no text could be extracted from file")
	}
	return text, nil
}

func decodeText(data []byte) (string, error) {
	switch {
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return string(data[3:]), nil
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return transformString(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), data)
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return transformString(unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder(), data)
	case utf8.Valid(data):
		return string(data), nil
	}
	return transformString(charmap.Windows1252.NewDecoder(), data)
}

func transformString(t transform.Transformer, data []byte) (string, error) {
	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// normalizeText unifies line endings, strips NULs and trailing spaces, and
// collapses runs of blank lines to one.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
