package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document represents an uploaded NDA that has been committed to permanent storage.
type Document struct {
	// ID is a unique identifier for the document, stored as a UUID string.
	ID string `gorm:"type:uuid;primaryKey" json:"id"`

	// Name is the original file name supplied by the uploader.
	Name string `gorm:"not null" json:"name"`

	// Type is the MIME type of the stored file (e.g., "application/pdf").
	Type string `json:"type"`

	// Summary is filled in once clause extraction completes.
	Summary string `json:"summary"`

	// FileRef is the blob key of the uploaded bytes. The blob is never overwritten.
	FileRef string `json:"fileRef"`

	// Metadata holds upload details such as size and the original extension.
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// BeforeCreate assigns an ID when the caller did not.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// TemporaryDocument is a staging copy of a document used by the comparison flow.
// It has the same shape as Document and expires after ExpiresAt.
type TemporaryDocument struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Type      string         `json:"type"`
	Summary   string         `json:"summary"`
	FileRef   string         `json:"fileRef"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	ExpiresAt time.Time      `gorm:"index" json:"expiresAt"`
	CreatedAt time.Time      `json:"created"`
	UpdatedAt time.Time      `json:"updated"`
}

func (d *TemporaryDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// Record is the collection-independent view of a Document or TemporaryDocument.
type Record struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Summary   string         `json:"summary"`
	FileRef   string         `json:"fileRef"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	Temporary bool           `json:"temporary"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt time.Time      `json:"created"`
}

// Record converts the document into its collection-independent form.
func (d Document) Record() Record {
	return Record{
		ID:        d.ID,
		Name:      d.Name,
		Type:      d.Type,
		Summary:   d.Summary,
		FileRef:   d.FileRef,
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt,
	}
}

func (d TemporaryDocument) Record() Record {
	expires := d.ExpiresAt
	return Record{
		ID:        d.ID,
		Name:      d.Name,
		Type:      d.Type,
		Summary:   d.Summary,
		FileRef:   d.FileRef,
		Metadata:  d.Metadata,
		Temporary: true,
		ExpiresAt: &expires,
		CreatedAt: d.CreatedAt,
	}
}
