package models

import "fmt"

// Classification is the outcome of comparing a clause with the reference corpus.
type Classification string

const (
	ClassificationFulfilled           Classification = "fulfilled"
	ClassificationRequiresChange      Classification = "requires-change"
	ClassificationRequiresLegalReview Classification = "requires-legal-review"
)

// Classifications lists the rubric values in the order they are offered to the model.
var Classifications = []Classification{
	ClassificationFulfilled,
	ClassificationRequiresChange,
	ClassificationRequiresLegalReview,
}

func (c Classification) Valid() bool {
	switch c {
	case ClassificationFulfilled, ClassificationRequiresChange, ClassificationRequiresLegalReview:
		return true
	}
	return false
}

// ParseClassification validates a raw classification value.
func ParseClassification(raw string) (Classification, error) {
	c := Classification(raw)
	if !c.Valid() {
		return "", fmt.Errorf("invalid classification %q", raw)
	}
	return c, nil
}

// SimilarClause is the nearest reference-corpus passage for a clause.
type SimilarClause struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// ClassifiedClause is a clause enriched with its classification. It is computed
// per request and never persisted.
type ClassifiedClause struct {
	ClauseInput
	Classification Classification `json:"classification,omitempty"`
	Explanation    string         `json:"explanation,omitempty"`
	SimilarClause  *SimilarClause `json:"similarClause"`
	Error          string         `json:"error,omitempty"`
}

// Unclassified returns the clause without any classification fields set.
func Unclassified(in ClauseInput) ClassifiedClause {
	return ClassifiedClause{ClauseInput: in}
}
