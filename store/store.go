package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	model "github.com/Itish41/ndareview/models"
)

// ErrNotFound is returned when a record or its parent does not exist.
var ErrNotFound = errors.New("record not found")

// NewRecord carries the fields supplied when a document record is created.
type NewRecord struct {
	Name     string
	Type     string
	Summary  string
	FileRef  string
	Metadata datatypes.JSON
}

// Store is the document store client used by the services. Each method
// addresses one collection pair (documents + clauses).
type Store interface {
	CreateRecord(ctx context.Context, coll model.Collection, rec NewRecord) (model.Record, error)
	GetRecord(ctx context.Context, coll model.Collection, id string) (model.Record, error)
	ListRecords(ctx context.Context, coll model.Collection) ([]model.Record, error)
	UpdateSummary(ctx context.Context, coll model.Collection, id, summary string) error
	CreateClause(ctx context.Context, coll model.Collection, parentID string, draft model.ClauseDraft) (model.ClauseRecord, error)
	ListClauses(ctx context.Context, coll model.Collection, parentID string) ([]model.ClauseRecord, error)
	DeleteExpiredTemporary(ctx context.Context, now time.Time) (int64, error)
}

// GormStore implements Store on top of Postgres (or SQLite in tests).
type GormStore struct {
	db      *gorm.DB
	tempTTL time.Duration
	now     func() time.Time
}

// NewGormStore wraps db. Temporary records expire tempTTL after creation.
func NewGormStore(db *gorm.DB, tempTTL time.Duration) *GormStore {
	return &GormStore{db: db, tempTTL: tempTTL, now: time.Now}
}

func (s *GormStore) CreateRecord(ctx context.Context, coll model.Collection, rec NewRecord) (model.Record, error) {
	now := s.now()
	switch coll {
	case model.CollectionDocuments:
		doc := model.Document{
			Name:      rec.Name,
			Type:      rec.Type,
			Summary:   rec.Summary,
			FileRef:   rec.FileRef,
			Metadata:  rec.Metadata,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
			return model.Record{}, fmt.Errorf("failed to create document: %w", err)
		}
		return doc.Record(), nil
	case model.CollectionTemporaryDocuments:
		doc := model.TemporaryDocument{
			Name:      rec.Name,
			Type:      rec.Type,
			Summary:   rec.Summary,
			FileRef:   rec.FileRef,
			Metadata:  rec.Metadata,
			ExpiresAt: now.Add(s.tempTTL),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
			return model.Record{}, fmt.Errorf("failed to create temporary document: %w", err)
		}
		return doc.Record(), nil
	}
	return model.Record{}, unknownCollection(coll)
}

func (s *GormStore) GetRecord(ctx context.Context, coll model.Collection, id string) (model.Record, error) {
	switch coll {
	case model.CollectionDocuments:
		var doc model.Document
		if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
			return model.Record{}, notFound(err, "document %s", id)
		}
		return doc.Record(), nil
	case model.CollectionTemporaryDocuments:
		var doc model.TemporaryDocument
		if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
			return model.Record{}, notFound(err, "temporary document %s", id)
		}
		return doc.Record(), nil
	}
	return model.Record{}, unknownCollection(coll)
}

func (s *GormStore) ListRecords(ctx context.Context, coll model.Collection) ([]model.Record, error) {
	switch coll {
	case model.CollectionDocuments:
		var docs []model.Document
		if err := s.db.WithContext(ctx).Order("created_at desc").Find(&docs).Error; err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		out := make([]model.Record, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.Record())
		}
		return out, nil
	case model.CollectionTemporaryDocuments:
		var docs []model.TemporaryDocument
		if err := s.db.WithContext(ctx).Order("created_at desc").Find(&docs).Error; err != nil {
			return nil, fmt.Errorf("failed to list temporary documents: %w", err)
		}
		out := make([]model.Record, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.Record())
		}
		return out, nil
	}
	return nil, unknownCollection(coll)
}

func (s *GormStore) UpdateSummary(ctx context.Context, coll model.Collection, id, summary string) error {
	var res *gorm.DB
	updates := map[string]interface{}{"summary": summary, "updated_at": s.now()}
	switch coll {
	case model.CollectionDocuments:
		res = s.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).Updates(updates)
	case model.CollectionTemporaryDocuments:
		res = s.db.WithContext(ctx).Model(&model.TemporaryDocument{}).Where("id = ?", id).Updates(updates)
	default:
		return unknownCollection(coll)
	}
	if res.Error != nil {
		return fmt.Errorf("failed to update summary of %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update summary of %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) CreateClause(ctx context.Context, coll model.Collection, parentID string, draft model.ClauseDraft) (model.ClauseRecord, error) {
	if !draft.Importance.Valid() {
		return model.ClauseRecord{}, fmt.Errorf("invalid importance %q", draft.Importance)
	}
	now := s.now()
	switch coll {
	case model.CollectionDocuments:
		c := model.Clause{
			DocumentID: parentID,
			Content:    draft.Content,
			Category:   draft.Category,
			Importance: draft.Importance,
			Ordinal:    draft.Ordinal,
			CreatedAt:  now,
		}
		if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
			return model.ClauseRecord{}, fmt.Errorf("failed to create clause for %s: %w", parentID, err)
		}
		return c.Record(), nil
	case model.CollectionTemporaryDocuments:
		c := model.TemporaryClause{
			TemporaryDocumentID: parentID,
			Content:             draft.Content,
			Category:            draft.Category,
			Importance:          draft.Importance,
			Ordinal:             draft.Ordinal,
			CreatedAt:           now,
		}
		if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
			return model.ClauseRecord{}, fmt.Errorf("failed to create temporary clause for %s: %w", parentID, err)
		}
		return c.Record(), nil
	}
	return model.ClauseRecord{}, unknownCollection(coll)
}

func (s *GormStore) ListClauses(ctx context.Context, coll model.Collection, parentID string) ([]model.ClauseRecord, error) {
	var out []model.ClauseRecord
	switch coll {
	case model.CollectionDocuments:
		var rows []model.Clause
		if err := s.db.WithContext(ctx).Where("document_id = ?", parentID).Order("ordinal asc, created_at asc, id asc").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to list clauses of %s: %w", parentID, err)
		}
		for _, r := range rows {
			out = append(out, r.Record())
		}
	case model.CollectionTemporaryDocuments:
		var rows []model.TemporaryClause
		if err := s.db.WithContext(ctx).Where("temporary_document_id = ?", parentID).Order("ordinal asc, created_at asc, id asc").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to list temporary clauses of %s: %w", parentID, err)
		}
		for _, r := range rows {
			out = append(out, r.Record())
		}
	default:
		return nil, unknownCollection(coll)
	}

	// Rows written outside this service may carry arbitrary tags.
	for _, c := range out {
		if !c.Importance.Valid() {
			return nil, fmt.Errorf("clause %s has invalid importance %q", c.ID, c.Importance)
		}
	}
	if out == nil {
		out = []model.ClauseRecord{}
	}
	return out, nil
}

// DeleteExpiredTemporary removes temporary documents whose expiry has passed,
// together with their clauses.
func (s *GormStore) DeleteExpiredTemporary(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&model.TemporaryDocument{}).Select("id").Where("expires_at <= ?", now)
		if err := tx.Where("temporary_document_id IN (?)", expired).Delete(&model.TemporaryClause{}).Error; err != nil {
			return err
		}
		res := tx.Where("expires_at <= ?", now).Delete(&model.TemporaryDocument{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired temporary documents: %w", err)
	}
	return deleted, nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf("failed to load "+format+": %w", append(args, err)...)
}

func unknownCollection(coll model.Collection) error {
	return fmt.Errorf("unknown collection %q", coll)
}
