package extractor

import "strings"

// Chunk is a window of source text.
type Chunk struct {
	Index int
	Text  string
}

var separators = []string{"\n\n", "\n", ". ", " "}

// Split cuts text into chunks of at most size runes, each starting overlap
// runes before the end of the previous one. Boundaries are pulled back to the
// nearest paragraph, line, sentence or word break inside the window when one
// exists in its second half.
func Split(text string, size, overlap int) []Chunk {
	if size <= 0 {
		size = 600
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: piece})
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func breakPoint(runes []rune, start, end int) int {
	window := string(runes[start:end])
	half := len(window) / 2
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= half {
			// i is a byte offset; convert back to runes.
			return start + len([]rune(window[:i+len(sep)]))
		}
	}
	return end
}
