package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/Itish41/ndareview/logger"
	model "github.com/Itish41/ndareview/models"
)

// Hit is one full-text search match.
type Hit struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	DocumentID string  `json:"documentId"`
	Name       string  `json:"name,omitempty"`
	Category   string  `json:"category,omitempty"`
	Content    string  `json:"content,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	Temporary  bool    `json:"temporary"`
	Score      float64 `json:"score"`
}

const (
	kindDocument = "document"
	kindClause   = "clause"
)

// Index writes documents and clauses to Elasticsearch. A nil client disables
// indexing and makes Search fail, mirroring an unset ELASTICSEARCH_URL.
type Index struct {
	es    *elasticsearch.Client
	index string
	log   *logger.Logger
	now   func() time.Time
}

// New builds an Index. An empty url yields a disabled index.
func New(url, index string, log *logger.Logger) (*Index, error) {
	idx := &Index{index: index, log: log, now: time.Now}
	if url == "" {
		log.Warn("ELASTICSEARCH_URL not set, full-text search disabled")
		return idx, nil
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	idx.es = es
	return idx, nil
}

// Enabled reports whether a client is configured.
func (i *Index) Enabled() bool { return i != nil && i.es != nil }

// IndexDocument indexes a record's name and summary. Failures are logged and
// swallowed so they never break an upload.
func (i *Index) IndexDocument(ctx context.Context, rec model.Record) {
	if !i.Enabled() {
		return
	}
	i.put(ctx, rec.ID, map[string]interface{}{
		"kind":        kindDocument,
		"document_id": rec.ID,
		"name":        rec.Name,
		"summary":     rec.Summary,
		"temporary":   rec.Temporary,
		"timestamp":   i.now().UTC(),
	})
}

// IndexClauses indexes each clause of a record.
func (i *Index) IndexClauses(ctx context.Context, rec model.Record, clauses []model.ClauseRecord) {
	if !i.Enabled() {
		return
	}
	for _, c := range clauses {
		i.put(ctx, c.ID, map[string]interface{}{
			"kind":        kindClause,
			"document_id": rec.ID,
			"name":        rec.Name,
			"category":    c.Category,
			"content":     c.Content,
			"importance":  string(c.Importance),
			"temporary":   rec.Temporary,
			"timestamp":   i.now().UTC(),
		})
	}
}

func (i *Index) put(ctx context.Context, id string, doc map[string]interface{}) {
	body, err := json.Marshal(doc)
	if err != nil {
		i.log.Warn("failed to marshal search document", "id", id, "error", err)
		return
	}

	res, err := i.es.Index(
		i.index,
		bytes.NewReader(body),
		i.es.Index.WithDocumentID(id),
		i.es.Index.WithContext(ctx),
	)
	if err != nil {
		i.log.Warn("elasticsearch indexing error", "id", id, "error", err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.log.Warn("elasticsearch indexing failed", "id", id, "status", res.String())
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Kind       string `json:"kind"`
				DocumentID string `json:"document_id"`
				Name       string `json:"name"`
				Category   string `json:"category"`
				Content    string `json:"content"`
				Summary    string `json:"summary"`
				Temporary  bool   `json:"temporary"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi_match query over names, summaries and clause text.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if !i.Enabled() {
		return nil, fmt.Errorf("elasticsearch client is not initialized")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if limit <= 0 {
		limit = 10
	}

	body, err := json.Marshal(map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"content", "summary", "name^2", "category"},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{
			ID:         h.ID,
			Kind:       h.Source.Kind,
			DocumentID: h.Source.DocumentID,
			Name:       h.Source.Name,
			Category:   h.Source.Category,
			Content:    h.Source.Content,
			Summary:    h.Source.Summary,
			Temporary:  h.Source.Temporary,
			Score:      h.Score,
		})
	}
	return hits, nil
}
