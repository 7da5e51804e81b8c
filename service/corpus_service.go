package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Itish41/ndareview/extractor"
	"github.com/Itish41/ndareview/logger"
	"github.com/Itish41/ndareview/vectorstore"
)

const embedBatchSize = 64

// IngestReport summarises one ingested reference document.
type IngestReport struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
	Chars  int    `json:"chars"`
}

// CorpusHit is a vector-search result over the reference corpus.
type CorpusHit struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunkIndex"`
}

// CorpusService builds and queries the reference corpus.
type CorpusService struct {
	embedder     Embedder
	vectors      vectorstore.Store
	http         HTTPDoer
	log          *logger.Logger
	chunkSize    int
	chunkOverlap int
}

func NewCorpusService(embedder Embedder, vectors vectorstore.Store, log *logger.Logger, chunkSize, chunkOverlap int) *CorpusService {
	return &CorpusService{
		embedder:     embedder,
		vectors:      vectors,
		http:         &http.Client{Timeout: 2 * time.Minute},
		log:          log.With("service", "CorpusService"),
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Ingest reads a PDF from a URL or path, chunks its text, embeds the chunks
// and upserts them. Chunk point ids depend only on location and position, so
// ingesting the same location again replaces its points.
func (s *CorpusService) Ingest(ctx context.Context, location string) (*IngestReport, error) {
	data, _, err := fetchLocation(ctx, s.http, location)
	if err != nil {
		return nil, err
	}

	text, err := extractor.ExtractPDFText(data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", location, err)
	}

	chunks := extractor.Split(text, s.chunkSize, s.chunkOverlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text chunks produced for %s", location)
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks of %s: %w", location, err)
		}

		points := make([]vectorstore.Point, len(batch))
		for i, c := range batch {
			points[i] = vectorstore.Point{
				ID:     vectorstore.ChunkPointID(location, c.Index),
				Vector: vecs[i],
				Payload: map[string]any{
					"content":     c.Text,
					"source":      location,
					"chunk_index": c.Index,
				},
			}
		}
		if err := s.vectors.Upsert(ctx, points); err != nil {
			return nil, fmt.Errorf("failed to upsert chunks of %s: %w", location, err)
		}
	}

	s.log.Info("reference document ingested", "source", location, "chunks", len(chunks), "chars", len(text))
	return &IngestReport{Source: location, Chunks: len(chunks), Chars: len(text)}, nil
}

// Search embeds query and returns the limit nearest corpus passages.
func (s *CorpusService) Search(ctx context.Context, query string, limit int) ([]CorpusHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := s.vectors.Search(ctx, vec, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]CorpusHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, CorpusHit{
			ID:         m.ID,
			Score:      m.Score,
			Content:    m.Content(),
			Source:     m.Source(),
			ChunkIndex: chunkIndex(m.Payload["chunk_index"]),
		})
	}
	return hits, nil
}

func chunkIndex(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
