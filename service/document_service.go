package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Itish41/ndareview/blob"
	"github.com/Itish41/ndareview/logger"
	model "github.com/Itish41/ndareview/models"
	"github.com/Itish41/ndareview/search"
	"github.com/Itish41/ndareview/store"
)

// Searcher queries the full-text index. *search.Index implements it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Hit, error)
}

// DocumentView is a document with its clauses, classified when possible.
type DocumentView struct {
	Document            model.Record             `json:"document"`
	Clauses             []model.ClassifiedClause `json:"clauses"`
	ClassificationError string                   `json:"classificationError,omitempty"`
}

// DocumentService serves the read side: views, listings, files and search.
type DocumentService struct {
	store      store.Store
	blobs      blob.Store
	classifier Classifier
	searcher   Searcher
	log        *logger.Logger
	now        func() time.Time
}

func NewDocumentService(st store.Store, blobs blob.Store, classifier Classifier, searcher Searcher, log *logger.Logger) *DocumentService {
	return &DocumentService{
		store:      st,
		blobs:      blobs,
		classifier: classifier,
		searcher:   searcher,
		log:        log.With("service", "DocumentService"),
		now:        time.Now,
	}
}

// ListDocuments returns every record of the collection, newest first.
func (s *DocumentService) ListDocuments(ctx context.Context, temporary bool) ([]model.Record, error) {
	return s.store.ListRecords(ctx, model.CollectionFor(temporary))
}

// GetDocumentView loads a record and classifies its clauses. When
// classification fails as a whole the clauses are returned unclassified and
// ClassificationError explains why; only store errors fail the call.
func (s *DocumentService) GetDocumentView(ctx context.Context, id string, temporary bool) (*DocumentView, error) {
	coll := model.CollectionFor(temporary)
	rec, err := s.store.GetRecord(ctx, coll, id)
	if err != nil {
		return nil, err
	}
	clauses, err := s.store.ListClauses(ctx, coll, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load clauses: %w", err)
	}

	inputs := make([]model.ClauseInput, len(clauses))
	for i, c := range clauses {
		inputs[i] = c.Input()
	}

	view := &DocumentView{Document: rec}
	if s.classifier == nil {
		view.Clauses = unclassified(inputs)
		return view, nil
	}

	classified, err := s.classifier.Classify(ctx, inputs)
	if err != nil || len(classified) != len(inputs) {
		if err == nil {
			err = errors.New("classification result does not match clause count")
		}
		s.log.Warn("classification failed, showing unclassified clauses", "record_id", id, "error", err)
		view.Clauses = unclassified(inputs)
		view.ClassificationError = err.Error()
		return view, nil
	}
	view.Clauses = classified
	return view, nil
}

func unclassified(inputs []model.ClauseInput) []model.ClassifiedClause {
	out := make([]model.ClassifiedClause, len(inputs))
	for i, in := range inputs {
		out[i] = model.Unclassified(in)
	}
	return out
}

// ReadFile returns the stored bytes of a record's file.
func (s *DocumentService) ReadFile(ctx context.Context, id string, temporary bool) ([]byte, model.Record, error) {
	rec, err := s.store.GetRecord(ctx, model.CollectionFor(temporary), id)
	if err != nil {
		return nil, model.Record{}, err
	}
	if rec.FileRef == "" {
		return nil, rec, fmt.Errorf("%w: document %s has no file", store.ErrNotFound, id)
	}
	data, err := s.blobs.Get(ctx, rec.FileRef)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, rec, fmt.Errorf("%w: file of document %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, rec, fmt.Errorf("failed to read file: %w", err)
	}
	return data, rec, nil
}

// FileURL returns the public URL of a record's file.
func (s *DocumentService) FileURL(key string) string {
	return s.blobs.URL(key)
}

// SearchDocuments runs a full-text query over documents and clauses.
func (s *DocumentService) SearchDocuments(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	if s.searcher == nil {
		return nil, fmt.Errorf("full-text search is not configured")
	}
	return s.searcher.Search(ctx, query, limit)
}

// SweepExpired deletes temporary documents past their expiry.
func (s *DocumentService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredTemporary(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired temporary documents: %w", err)
	}
	if n > 0 {
		s.log.Info("expired temporary documents deleted", "count", n)
	}
	return n, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *DocumentService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx); err != nil {
				s.log.Error("temporary document sweep failed", "error", err)
			}
		}
	}
}
