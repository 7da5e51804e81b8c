package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/Itish41/ndareview/blob"
	"github.com/Itish41/ndareview/extractor"
	"github.com/Itish41/ndareview/fanout"
	"github.com/Itish41/ndareview/llm"
	"github.com/Itish41/ndareview/logger"
	model "github.com/Itish41/ndareview/models"
	"github.com/Itish41/ndareview/store"
)

var (
	// ErrMalformedExtraction means the model answer did not satisfy the
	// extraction schema. It is never repaired.
	ErrMalformedExtraction = errors.New("malformed clause extraction")

	// ErrUnsupportedDocument is returned for content the model cannot be given.
	ErrUnsupportedDocument = errors.New("unsupported document type")

	// ErrInvalidInput marks caller mistakes detected before any processing.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

const extractionSystem = "You are a helpful assistant that analyzes legal documents. Extract key clauses and categorize them. " +
	"Focus on identifying termination conditions, liability provisions, confidentiality requirements, payment terms, " +
	"intellectual property rights, and governance structures. For each clause, determine its importance level based on its impact and scope."

// Extraction is the validated model answer.
type Extraction struct {
	Summary string              `json:"summary"`
	Clauses []model.ClauseDraft `json:"clauses"`
}

// ExtractResult describes a persisted extraction.
type ExtractResult struct {
	RecordID      string               `json:"recordId"`
	Summary       string               `json:"summary"`
	Clauses       []model.ClauseRecord `json:"clauses"`
	FailedClauses int                  `json:"failedClauses,omitempty"`
}

// ExtractionService turns documents into summaries and clause records.
type ExtractionService struct {
	gen              Generator
	store            store.Store
	blobs            blob.Store
	index            Indexer
	http             HTTPDoer
	log              *logger.Logger
	writeConcurrency int
	now              func() time.Time
}

func NewExtractionService(gen Generator, st store.Store, blobs blob.Store, index Indexer, log *logger.Logger, writeConcurrency int) *ExtractionService {
	if index == nil {
		index = nopIndexer{}
	}
	return &ExtractionService{
		gen:              gen,
		store:            st,
		blobs:            blobs,
		index:            index,
		http:             &http.Client{Timeout: 60 * time.Second},
		log:              log.With("service", "ExtractionService"),
		writeConcurrency: writeConcurrency,
		now:              time.Now,
	}
}

// ExtractClauses asks the model for a summary and the key clauses of a
// document. Importance is not requested.
func (s *ExtractionService) ExtractClauses(ctx context.Context, data []byte, mimeType string) (*Extraction, error) {
	return s.extract(ctx, "document", data, mimeType, false)
}

func (s *ExtractionService) extract(ctx context.Context, name string, data []byte, mimeType string, withImportance bool) (*Extraction, error) {
	att, err := attachmentFor(name, data, mimeType)
	if err != nil {
		return nil, err
	}

	var raw rawExtraction
	err = s.gen.GenerateObject(ctx, llm.ObjectRequest{
		System:      extractionSystem,
		Prompt:      "Extract the summary and the key clauses of the attached document.",
		Attachments: []llm.Attachment{att},
		SchemaName:  "clause_extraction",
		Schema:      extractionSchema(withImportance),
	}, &raw)
	if errors.Is(err, llm.ErrMalformedOutput) {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}
	if err != nil {
		return nil, fmt.Errorf("clause extraction failed: %w", err)
	}

	return raw.validate(withImportance)
}

// ExtractToTemporary stores the file, extracts its clauses and persists a
// TemporaryDocument with one TemporaryClause per extracted clause. Clause
// writes run concurrently; failures are counted in the result and already
// written rows are kept.
func (s *ExtractionService) ExtractToTemporary(ctx context.Context, file model.FileData) (*ExtractResult, error) {
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("file %q is empty", file.Name)
	}
	mimeType := effectiveMIME(file.Name, file.Type, file.Data)

	extraction, err := s.extract(ctx, file.Name, file.Data, mimeType, false)
	if err != nil {
		return nil, err
	}

	key := blob.NewKey(s.now(), file.Name)
	if err := s.blobs.Put(ctx, key, file.Data, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	meta, _ := json.Marshal(map[string]any{
		"size":      len(file.Data),
		"extension": strings.ToLower(filepath.Ext(file.Name)),
		"clauses":   len(extraction.Clauses),
	})
	rec, err := s.store.CreateRecord(ctx, model.CollectionTemporaryDocuments, store.NewRecord{
		Name:     file.Name,
		Type:     mimeType,
		Summary:  extraction.Summary,
		FileRef:  key,
		Metadata: datatypes.JSON(meta),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary document: %w", err)
	}

	clauses, failed := s.writeClauses(ctx, model.CollectionTemporaryDocuments, rec.ID, extraction.Clauses)
	s.index.IndexDocument(ctx, rec)
	s.index.IndexClauses(ctx, rec, clauses)

	s.log.Info("temporary document created",
		"record_id", rec.ID,
		"clauses", len(clauses),
		"failed_clauses", failed,
	)
	return &ExtractResult{RecordID: rec.ID, Summary: rec.Summary, Clauses: clauses, FailedClauses: failed}, nil
}

// SummarizeDocument downloads a committed document, extracts clauses with
// importance, stores the summary on the record and creates its clauses.
func (s *ExtractionService) SummarizeDocument(ctx context.Context, recordID, fileURL string) (*Extraction, error) {
	if err := checkURL(fileURL); err != nil {
		return nil, err
	}
	rec, err := s.store.GetRecord(ctx, model.CollectionDocuments, recordID)
	if err != nil {
		return nil, err
	}

	data, contentType, err := fetchURL(ctx, s.http, fileURL)
	if err != nil {
		return nil, err
	}
	mimeType := effectiveMIME(rec.Name, contentType, data)

	extraction, err := s.extract(ctx, rec.Name, data, mimeType, true)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateSummary(ctx, model.CollectionDocuments, rec.ID, extraction.Summary); err != nil {
		return nil, fmt.Errorf("failed to update summary: %w", err)
	}
	rec.Summary = extraction.Summary

	clauses, failed := s.writeClauses(ctx, model.CollectionDocuments, rec.ID, extraction.Clauses)
	s.index.IndexDocument(ctx, rec)
	s.index.IndexClauses(ctx, rec, clauses)
	if failed > 0 {
		return extraction, fmt.Errorf("%d of %d clauses could not be stored", failed, len(extraction.Clauses))
	}
	return extraction, nil
}

func (s *ExtractionService) writeClauses(ctx context.Context, coll model.Collection, parentID string, drafts []model.ClauseDraft) ([]model.ClauseRecord, int) {
	results := fanout.Gather(ctx, drafts, s.writeConcurrency, func(ctx context.Context, i int, d model.ClauseDraft) (model.ClauseRecord, error) {
		d.Ordinal = i
		return s.store.CreateClause(ctx, coll, parentID, d)
	})

	stored := make([]model.ClauseRecord, 0, len(results))
	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			s.log.Warn("failed to store clause", "parent_id", parentID, "index", i, "error", r.Err)
			continue
		}
		stored = append(stored, r.Value)
	}
	return stored, failed
}

func attachmentFor(name string, data []byte, mimeType string) (llm.Attachment, error) {
	switch {
	case mimeType == mimePDF:
		return llm.Attachment{Name: name, MediaType: mimePDF, Data: data}, nil
	case mimeType == mimeDOCX:
		text, err := extractor.ExtractDOCXText(data)
		if err != nil {
			return llm.Attachment{}, fmt.Errorf("%w: %v", ErrUnsupportedDocument, err)
		}
		return llm.Attachment{Name: name, MediaType: mimeText, Text: text}, nil
	case strings.HasPrefix(mimeType, "text/"):
		text, err := extractor.ExtractPlainText(data)
		if err != nil {
			return llm.Attachment{}, fmt.Errorf("%w: %v", ErrUnsupportedDocument, err)
		}
		return llm.Attachment{Name: name, MediaType: mimeText, Text: text}, nil
	}
	return llm.Attachment{}, fmt.Errorf("%w: %s", ErrUnsupportedDocument, mimeType)
}

// effectiveMIME trusts the declared type when it is one we handle and falls
// back to the extension and then to the content.
func effectiveMIME(name, declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		switch {
		case mt == mimePDF, mt == mimeDOCX, strings.HasPrefix(mt, "text/"):
			return mt
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".txt", ".md":
		return mimeText
	}
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return mimePDF
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return mimeDOCX
	}
	if mt := http.DetectContentType(data); strings.HasPrefix(mt, "text/") {
		return mimeText
	}
	return declared
}

type rawClause struct {
	Category   *string `json:"category"`
	Content    *string `json:"content"`
	Importance *string `json:"importance"`
}

type rawExtraction struct {
	Summary *string      `json:"summary"`
	Clauses *[]rawClause `json:"clauses"`
}

func (r rawExtraction) validate(withImportance bool) (*Extraction, error) {
	if r.Summary == nil {
		return nil, fmt.Errorf("%w: summary missing", ErrMalformedExtraction)
	}
	if r.Clauses == nil {
		return nil, fmt.Errorf("%w: clauses missing", ErrMalformedExtraction)
	}

	out := &Extraction{Summary: *r.Summary, Clauses: make([]model.ClauseDraft, 0, len(*r.Clauses))}
	for i, c := range *r.Clauses {
		if c.Category == nil || c.Content == nil {
			return nil, fmt.Errorf("%w: clause %d lacks category or content", ErrMalformedExtraction, i)
		}
		draft := model.ClauseDraft{Category: *c.Category, Content: *c.Content}
		if withImportance {
			if c.Importance == nil {
				return nil, fmt.Errorf("%w: clause %d lacks importance", ErrMalformedExtraction, i)
			}
			imp, err := model.ParseImportance(*c.Importance)
			if err != nil || imp == model.ImportanceUnassessed {
				return nil, fmt.Errorf("%w: clause %d has invalid importance %q", ErrMalformedExtraction, i, *c.Importance)
			}
			draft.Importance = imp
		}
		out.Clauses = append(out.Clauses, draft)
	}
	return out, nil
}

func extractionSchema(withImportance bool) map[string]any {
	clauseProps := map[string]any{
		"category": map[string]any{"type": "string"},
		"content":  map[string]any{"type": "string"},
	}
	required := []string{"category", "content"}
	if withImportance {
		enum := make([]string, 0, len(model.Importances))
		for _, imp := range model.Importances {
			enum = append(enum, string(imp))
		}
		clauseProps["importance"] = map[string]any{"type": "string", "enum": enum}
		required = append(required, "importance")
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"summary", "clauses"},
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "Provide a concise overview of the document's main purpose and key provisions.",
			},
			"clauses": map[string]any{
				"type":        "array",
				"description": "Extract and categorize key clauses from the document. For each clause, specify its category, content, and importance level.",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             required,
					"properties":           clauseProps,
				},
			},
		},
	}
}
