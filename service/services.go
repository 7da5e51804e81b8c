package services

import (
	"context"
	"net/http"

	"github.com/Itish41/ndareview/llm"
	model "github.com/Itish41/ndareview/models"
)

// Generator produces structured model output. *llm.Client implements it.
type Generator interface {
	GenerateObject(ctx context.Context, req llm.ObjectRequest, out any) error
}

// Embedder turns text into vectors. *llm.Client implements it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Converter normalises legacy document formats. *converter.Converter implements it.
type Converter interface {
	Convert(ctx context.Context, data []byte, filename string) ([]byte, error)
}

// Indexer receives best-effort full-text index updates. *search.Index implements it.
type Indexer interface {
	IndexDocument(ctx context.Context, rec model.Record)
	IndexClauses(ctx context.Context, rec model.Record, clauses []model.ClauseRecord)
}

// Classifier labels clauses against the reference corpus.
type Classifier interface {
	Classify(ctx context.Context, clauses []model.ClauseInput) ([]model.ClassifiedClause, error)
}

// HTTPDoer is the part of *http.Client used to fetch remote documents.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type nopIndexer struct{}

func (nopIndexer) IndexDocument(context.Context, model.Record) {}

func (nopIndexer) IndexClauses(context.Context, model.Record, []model.ClauseRecord) {}
