package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Importance is the closed set of importance tags a clause may carry.
type Importance string

const (
	ImportanceUnassessed Importance = ""
	ImportanceMustHave   Importance = "must-have"
	ImportanceOptional   Importance = "optional"
	ImportanceRedFlag    Importance = "red-flag"
)

// Importances lists every assessed importance value, in rubric order.
var Importances = []Importance{ImportanceMustHave, ImportanceOptional, ImportanceRedFlag}

// Valid reports whether i belongs to the enumeration. The empty value is valid
// and means the clause was never assessed.
func (i Importance) Valid() bool {
	switch i {
	case ImportanceUnassessed, ImportanceMustHave, ImportanceOptional, ImportanceRedFlag:
		return true
	}
	return false
}

// ParseImportance validates a raw importance value.
func ParseImportance(raw string) (Importance, error) {
	i := Importance(raw)
	if !i.Valid() {
		return "", fmt.Errorf("invalid importance %q", raw)
	}
	return i, nil
}

// Clause is a discrete passage extracted from a Document.
type Clause struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID string     `gorm:"type:uuid;index;not null" json:"documentId"`
	Content    string     `gorm:"not null" json:"content"`
	Category   string     `json:"category"`
	Importance Importance `gorm:"type:varchar(16)" json:"importance,omitempty"`
	Ordinal    int        `gorm:"not null;default:0" json:"ordinal"`
	CreatedAt  time.Time  `json:"created"`
}

func (Clause) TableName() string { return "document_clauses" }

// BeforeSave rejects importance values outside the enumeration.
func (c *Clause) BeforeSave(tx *gorm.DB) error {
	if !c.Importance.Valid() {
		return fmt.Errorf("clause %s: invalid importance %q", c.ID, c.Importance)
	}
	return nil
}

func (c *Clause) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// TemporaryClause is a clause belonging to a TemporaryDocument.
type TemporaryClause struct {
	ID                  string     `gorm:"type:uuid;primaryKey" json:"id"`
	TemporaryDocumentID string     `gorm:"type:uuid;index;not null" json:"temporaryDocumentId"`
	Content             string     `gorm:"not null" json:"content"`
	Category            string     `json:"category"`
	Importance          Importance `gorm:"type:varchar(16)" json:"importance,omitempty"`
	Ordinal             int        `gorm:"not null;default:0" json:"ordinal"`
	CreatedAt           time.Time  `json:"created"`
}

func (TemporaryClause) TableName() string { return "temporary_document_clauses" }

func (c *TemporaryClause) BeforeSave(tx *gorm.DB) error {
	if !c.Importance.Valid() {
		return fmt.Errorf("temporary clause %s: invalid importance %q", c.ID, c.Importance)
	}
	return nil
}

func (c *TemporaryClause) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ClauseDraft is an extracted clause that has not been persisted yet.
// Ordinal is its position in the extraction and fixes the listing order.
type ClauseDraft struct {
	Category   string     `json:"category"`
	Content    string     `json:"content"`
	Importance Importance `json:"importance,omitempty"`
	Ordinal    int        `json:"-"`
}

// ClauseInput is the minimal clause shape accepted for classification.
type ClauseInput struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (c Clause) Record() ClauseRecord {
	return ClauseRecord{ID: c.ID, DocumentID: c.DocumentID, Content: c.Content, Category: c.Category, Importance: c.Importance, Ordinal: c.Ordinal}
}

func (c TemporaryClause) Record() ClauseRecord {
	return ClauseRecord{ID: c.ID, DocumentID: c.TemporaryDocumentID, Content: c.Content, Category: c.Category, Importance: c.Importance, Ordinal: c.Ordinal}
}

// Collection names the pair of tables a record and its clauses live in.
type Collection string

const (
	CollectionDocuments          Collection = "documents"
	CollectionTemporaryDocuments Collection = "temporary_documents"
)

// CollectionFor maps the temporary flag used by the HTTP layer to a collection.
func CollectionFor(temporary bool) Collection {
	if temporary {
		return CollectionTemporaryDocuments
	}
	return CollectionDocuments
}

// ClauseRecord is the collection-independent view of a persisted clause.
type ClauseRecord struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	Content    string     `json:"content"`
	Category   string     `json:"category"`
	Importance Importance `json:"importance,omitempty"`
	Ordinal    int        `json:"ordinal"`
}

func (c ClauseRecord) Input() ClauseInput {
	return ClauseInput{ID: c.ID, Content: c.Content, Category: c.Category}
}
