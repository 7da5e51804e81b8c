package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Itish41/ndareview/fanout"
	"github.com/Itish41/ndareview/llm"
	"github.com/Itish41/ndareview/logger"
	model "github.com/Itish41/ndareview/models"
	"github.com/Itish41/ndareview/vectorstore"
)

// ErrClassificationUnavailable is returned when no clause of a batch could be classified.
var ErrClassificationUnavailable = errors.New("classification unavailable")

const classificationSystem = "You are a helpful assistant that analyzes legal clauses. Based on the similarity search results, " +
	"determine if the clause is fulfilled, requires changes, or needs legal department review. " +
	"Consider the similarity scores and content of the matched clauses. " +
	"When the clause is not fulfilled, explain briefly what has to change or why legal review is needed."

// ClassificationService compares clauses with the reference corpus.
type ClassificationService struct {
	embedder Embedder
	vectors  vectorstore.Store
	gen      Generator
	log      *logger.Logger
	limit    int
}

func NewClassificationService(embedder Embedder, vectors vectorstore.Store, gen Generator, log *logger.Logger, concurrency int) *ClassificationService {
	return &ClassificationService{
		embedder: embedder,
		vectors:  vectors,
		gen:      gen,
		log:      log.With("service", "ClassificationService"),
		limit:    concurrency,
	}
}

// Classify returns one item per input clause, in input order. A clause whose
// pipeline fails is returned unclassified with Error set; the batch as a whole
// only fails when every clause failed.
func (s *ClassificationService) Classify(ctx context.Context, clauses []model.ClauseInput) ([]model.ClassifiedClause, error) {
	out := make([]model.ClassifiedClause, len(clauses))
	if len(clauses) == 0 {
		return out, nil
	}

	results := fanout.Gather(ctx, clauses, s.limit, s.classifyOne)

	var firstErr error
	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
			s.log.Warn("clause classification failed", "clause_id", clauses[i].ID, "error", r.Err)
			item := model.Unclassified(clauses[i])
			item.Error = ErrClassificationUnavailable.Error()
			out[i] = item
			continue
		}
		out[i] = r.Value
	}

	if failed == len(clauses) {
		return out, fmt.Errorf("%w: %v", ErrClassificationUnavailable, firstErr)
	}
	return out, nil
}

type classificationAnswer struct {
	Classification string  `json:"classification"`
	Explanation    *string `json:"explanation"`
}

func (s *ClassificationService) classifyOne(ctx context.Context, _ int, clause model.ClauseInput) (model.ClassifiedClause, error) {
	vec, err := s.embedder.Embed(ctx, clause.Content)
	if err != nil {
		return model.ClassifiedClause{}, fmt.Errorf("embed clause %s: %w", clause.ID, err)
	}

	matches, err := s.vectors.Search(ctx, vec, 1)
	if err != nil {
		return model.ClassifiedClause{}, fmt.Errorf("search similar clause %s: %w", clause.ID, err)
	}

	var answer classificationAnswer
	err = s.gen.GenerateObject(ctx, llm.ObjectRequest{
		System:     classificationSystem,
		Prompt:     classificationPrompt(clause, matches),
		SchemaName: "clause_classification",
		Schema:     classificationSchema(),
	}, &answer)
	if err != nil {
		return model.ClassifiedClause{}, fmt.Errorf("classify clause %s: %w", clause.ID, err)
	}

	class, err := model.ParseClassification(answer.Classification)
	if err != nil {
		return model.ClassifiedClause{}, fmt.Errorf("classify clause %s: %w", clause.ID, err)
	}

	item := model.ClassifiedClause{ClauseInput: clause, Classification: class}
	if answer.Explanation != nil {
		item.Explanation = strings.TrimSpace(*answer.Explanation)
	}
	if class != model.ClassificationFulfilled && item.Explanation == "" {
		s.log.Warn("non-fulfilled classification without explanation", "clause_id", clause.ID, "classification", class)
	}
	if len(matches) > 0 {
		item.SimilarClause = &model.SimilarClause{
			Content: matches[0].Content(),
			Source:  matches[0].Source(),
			Score:   matches[0].Score,
		}
	}
	return item, nil
}

type promptMatch struct {
	Score   float64 `json:"score"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
}

func classificationPrompt(clause model.ClauseInput, matches []vectorstore.Match) string {
	pm := make([]promptMatch, 0, len(matches))
	for _, m := range matches {
		pm = append(pm, promptMatch{Score: m.Score, Content: m.Content(), Source: m.Source()})
	}
	similar, _ := json.MarshalIndent(pm, "", "  ")

	return fmt.Sprintf("Please analyze this clause and its similar matches to determine its classification.\n\n"+
		"Clause category: %s\n\nClause to analyze:\n%s\n\nSimilar matches:\n%s",
		clause.Category, clause.Content, similar)
}

func classificationSchema() map[string]any {
	enum := make([]string, 0, len(model.Classifications))
	for _, c := range model.Classifications {
		enum = append(enum, string(c))
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"classification", "explanation"},
		"properties": map[string]any{
			"classification": map[string]any{"type": "string", "enum": enum},
			"explanation": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Why the clause is not fulfilled. Null when fulfilled.",
			},
		},
	}
}
